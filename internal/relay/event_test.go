package relay

import (
	"errors"
	"testing"
)

func TestParseEventShapes(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		kind     Kind
		pkgID    string
		orderID  string
		tracking string
	}{
		{
			name: "new shape created by status id",
			body: `{"id":42,"package_status_id":2,"shopify_order_id":"1001"}`,
			kind: KindPackageCreated, pkgID: "42", orderID: "1001",
		},
		{
			name: "new shape created by nested status",
			body: `{"id":"42","package_status":{"id":2,"code":"created","name":"Creado"},"imported_id":"900"}`,
			kind: KindPackageCreated, pkgID: "42", orderID: "900",
		},
		{
			name: "new shape completed with internal id tracking",
			body: `{"package_status_id":8,"id":42,"imported_id":"900","internal_id":"TRK1"}`,
			kind: KindShipmentCompleted, pkgID: "42", orderID: "900", tracking: "TRK1",
		},
		{
			name: "imported id wins over shopify_order_id",
			body: `{"id":7,"package_status_id":2,"imported_id":"111","shopify_order_id":"222"}`,
			kind: KindPackageCreated, pkgID: "7", orderID: "111",
		},
		{
			name: "new shape delivered code",
			body: `{"id":9,"package_status":{"id":99,"code":"delivered","name":"Entregado"}}`,
			kind: KindShipmentCompleted, pkgID: "9", tracking: "9",
		},
		{
			name: "new shape unknown status",
			body: `{"id":5,"package_status_id":4}`,
			kind: KindUnrecognized, pkgID: "5",
		},
		{
			name: "legacy created",
			body: `{"event":"paquete_creado","paquete_id":"55","shopify_order_id":1001}`,
			kind: KindPackageCreated, pkgID: "55", orderID: "1001",
		},
		{
			name: "legacy completed with tracking",
			body: `{"event":"envio_completado","id":55,"shopify_order_id":"1001","tracking_number":"TN9"}`,
			kind: KindShipmentCompleted, pkgID: "55", orderID: "1001", tracking: "TN9",
		},
		{
			name: "legacy unknown event",
			body: `{"event":"paquete_cancelado","paquete_id":"55"}`,
			kind: KindUnrecognized, pkgID: "55",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tc.body))
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if ev.Kind != tc.kind {
				t.Fatalf("kind: got %s, want %s", ev.Kind, tc.kind)
			}
			if ev.PackageID != tc.pkgID {
				t.Fatalf("packageId: got %q, want %q", ev.PackageID, tc.pkgID)
			}
			if ev.ExternalOrderID != tc.orderID {
				t.Fatalf("orderId: got %q, want %q", ev.ExternalOrderID, tc.orderID)
			}
			if tc.tracking != "" && ev.TrackingNumber != tc.tracking {
				t.Fatalf("tracking: got %q, want %q", ev.TrackingNumber, tc.tracking)
			}
		})
	}
}

func TestParseEventValidation(t *testing.T) {
	var verr *ValidationError

	_, err := ParseEvent([]byte(`not json`))
	if !errors.As(err, &verr) {
		t.Fatalf("invalid JSON: got %v, want ValidationError", err)
	}

	_, err = ParseEvent([]byte(`{"package_status_id":2}`))
	if !errors.As(err, &verr) {
		t.Fatalf("new shape without id: got %v, want ValidationError", err)
	}

	_, err = ParseEvent([]byte(`{"event":"paquete_creado"}`))
	if !errors.As(err, &verr) {
		t.Fatalf("legacy without package id: got %v, want ValidationError", err)
	}
}

func TestEnsureTrackingDefaults(t *testing.T) {
	ev := Event{Kind: KindShipmentCompleted, PackageID: "77"}
	ev.EnsureTracking()
	if ev.TrackingNumber != "77" {
		t.Fatalf("tracking number: got %q", ev.TrackingNumber)
	}
	if ev.TrackingURL != "https://recibelo.cl/track/77" {
		t.Fatalf("tracking url: got %q", ev.TrackingURL)
	}

	ev = Event{Kind: KindShipmentCompleted, PackageID: "77", TrackingNumber: "TN1", TrackingURL: "https://x/1"}
	ev.EnsureTracking()
	if ev.TrackingNumber != "TN1" || ev.TrackingURL != "https://x/1" {
		t.Fatalf("provided tracking overwritten: %+v", ev)
	}
}
