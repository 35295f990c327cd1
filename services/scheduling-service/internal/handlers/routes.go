package handlers

import (
	"net/http"

	"github.com/calmspace/practice/libs/auth"
	"github.com/calmspace/practice/libs/httpx"
)

type Routes struct {
	Appointments *AppointmentHandler
	Schedule     *ScheduleHandler
	Payments     *PaymentHandler
	Verifier     *auth.Verifier
	// PublicLimit throttles the anonymous endpoints; nil disables it.
	PublicLimit httpx.Middleware
}

// Register mounts every scheduling route on mux.
func (rt Routes) Register(mux *http.ServeMux) {
	public := []httpx.Middleware{rt.Verifier.Optional()}
	if rt.PublicLimit != nil {
		public = append([]httpx.Middleware{rt.PublicLimit}, public...)
	}
	appts := rt.Verifier.Require(auth.ManageAppointments)
	schedule := rt.Verifier.Require(auth.ManageSchedule)

	handle := func(pattern string, h http.HandlerFunc, m ...httpx.Middleware) {
		mux.Handle(pattern, httpx.Chain(h, m...))
	}

	a := rt.Appointments
	handle("GET /api/v1/availability", a.Availability, public...)
	handle("POST /api/v1/appointments", a.Create, public...)
	handle("GET /api/v1/appointments", a.List, appts)
	handle("GET /api/v1/appointments/{id}", a.Get, appts)
	handle("PUT /api/v1/appointments/{id}/reschedule", a.Reschedule, appts)
	handle("DELETE /api/v1/appointments/{id}", a.Cancel, appts)
	handle("PATCH /api/v1/appointments/{id}/status", a.ChangeStatus, appts)

	s := rt.Schedule
	handle("GET /api/v1/admin/schedule/weekly", s.ListWeekly, schedule)
	handle("PUT /api/v1/admin/schedule/weekly", s.ReplaceWeekly, schedule)
	handle("GET /api/v1/admin/schedule/exceptions", s.ListExceptions, schedule)
	handle("PUT /api/v1/admin/schedule/exceptions/{date}", s.PutException, schedule)
	handle("DELETE /api/v1/admin/schedule/exceptions/{date}", s.DeleteException, schedule)
	handle("GET /api/v1/admin/schedule/blocks", s.ListBlocks, schedule)
	handle("POST /api/v1/admin/schedule/blocks", s.CreateBlock, schedule)
	handle("DELETE /api/v1/admin/schedule/blocks/{id}", s.DeleteBlock, schedule)

	if rt.Payments != nil {
		handle("POST /api/v1/payments/webhooks/stripe", rt.Payments.StripeWebhook)
	}
}
