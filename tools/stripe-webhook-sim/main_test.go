package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestBuildEventJSONVerifies(t *testing.T) {
	for _, typ := range []string{"payment_intent.succeeded", "checkout.session.completed"} {
		t.Run(typ, func(t *testing.T) {
			payload, err := buildEventJSON("evt_1", typ, time.Now(), "appt-1")
			if err != nil {
				t.Fatalf("buildEventJSON failed: %v", err)
			}
			signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_x"})
			evt, err := webhook.ConstructEvent(payload, signed.Header, "whsec_x")
			if err != nil {
				t.Fatalf("ConstructEvent failed: %v", err)
			}
			if string(evt.Type) != typ || evt.APIVersion != stripe.APIVersion {
				t.Fatalf("unexpected event %s %s", evt.Type, evt.APIVersion)
			}
			var obj struct {
				Metadata map[string]string `json:"metadata"`
			}
			if err := json.Unmarshal(evt.Data.Raw, &obj); err != nil || obj.Metadata["appointment_id"] != "appt-1" {
				t.Fatalf("unexpected data %s (%v)", evt.Data.Raw, err)
			}
		})
	}
	if _, err := buildEventJSON("evt_1", "invoice.paid", time.Now(), "appt-1"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
