package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(t *testing.T, wantRole string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if wantRole == "" && ok {
			t.Errorf("expected anonymous request, got principal %+v", p)
		}
		if wantRole != "" && p.Role != wantRole {
			t.Errorf("expected role %q, got %+v", wantRole, p)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireCapability(t *testing.T) {
	secret := "test-secret"
	v := NewVerifier(VerifierConfig{Secret: secret})

	assistant, _ := SignHS256(NewClaims("u-1", "assistant", time.Hour), secret)
	admin, _ := SignHS256(NewClaims("u-2", "admin", time.Hour), secret)

	cases := []struct {
		name   string
		header string
		role   string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "lacks capability", header: "Bearer " + assistant, want: http.StatusForbidden},
		{name: "admin", header: "Bearer " + admin, role: "admin", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := v.Require(ManageSchedule)(okHandler(t, tc.role))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, req)
			if rw.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rw.Code)
			}
		})
	}
}

func TestOptionalAllowsAnonymous(t *testing.T) {
	v := NewVerifier(VerifierConfig{Secret: "s"})
	h := v.Optional()(okHandler(t, ""))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, req)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rwBad.Code)
	}
}

func TestPrincipalCapabilities(t *testing.T) {
	if !(Principal{Role: "therapist"}).Can(ManageSchedule) {
		t.Fatal("therapist should manage schedule")
	}
	if (Principal{Role: "assistant"}).Can(ManageSchedule) {
		t.Fatal("assistant should not manage schedule")
	}
	if (Principal{Role: "patient"}).Can(ManageAppointments) {
		t.Fatal("unknown role should hold no capability")
	}
}
