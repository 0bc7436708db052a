// Package relay implements the event normalizer, the outbound client for the
// logistics backend, and the best-effort audit recorder.
package relay

import (
	"encoding/json"

	"shiprelay/internal/model"
)

// Kind classifies a normalized inbound logistics event.
type Kind string

const (
	KindPackageCreated    Kind = model.EventPackageCreated
	KindShipmentCompleted Kind = model.EventShipmentCompleted
	KindUnrecognized      Kind = "unrecognized"
)

// Event is the canonical form of an inbound logistics webhook, regardless of
// which payload shape carried it. PackageID is the only guaranteed field;
// everything else may be empty and downstream code treats that as
// "insufficient data", not as a failure.
type Event struct {
	Kind            Kind
	PackageID       string
	ExternalOrderID string
	TrackingNumber  string
	TrackingURL     string
	StatusLabel     string // raw status name/code, for acknowledgment messages
}

// Package status ids used by the logistics backend.
const (
	statusIDCreated   = 2
	statusIDCompleted = 8
)

const trackingSite = "https://recibelo.cl/track/"

// newShape is the current webhook format, discriminated by the presence of
// package_status or package_status_id.
type newShape struct {
	ID              model.FlexID `json:"id"`
	PackageStatusID int          `json:"package_status_id"`
	PackageStatus   *struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"package_status"`
	ImportedID     model.FlexID `json:"imported_id"`
	ShopifyOrderID model.FlexID `json:"shopify_order_id"`
	InternalID     model.FlexID `json:"internal_id"`
	TrackingURL    string       `json:"tracking_url"`
}

// legacyShape is the original webhook format with an explicit event field.
type legacyShape struct {
	Event          string       `json:"event"`
	ShopifyOrderID model.FlexID `json:"shopify_order_id"`
	PaqueteID      model.FlexID `json:"paquete_id"`
	ID             model.FlexID `json:"id"`
	TrackingNumber string       `json:"tracking_number"`
	TrackingURL    string       `json:"tracking_url"`
}

// ParseEvent decodes an inbound logistics webhook body in either supported
// shape into a canonical Event. Tagged-variant decode: the new shape wins
// when its discriminant field is present, otherwise the legacy shape is
// assumed. A missing package id is a ValidationError in both shapes.
func ParseEvent(body []byte) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return Event{}, &ValidationError{Field: "body", Msg: "invalid JSON: " + err.Error()}
	}
	if _, ok := probe["package_status"]; ok {
		return parseNewShape(body)
	}
	if _, ok := probe["package_status_id"]; ok {
		return parseNewShape(body)
	}
	return parseLegacyShape(body)
}

func parseNewShape(body []byte) (Event, error) {
	var in newShape
	if err := json.Unmarshal(body, &in); err != nil {
		return Event{}, &ValidationError{Field: "body", Msg: err.Error()}
	}
	if in.ID == "" {
		return Event{}, NewValidationError("id")
	}
	statusID := in.PackageStatusID
	var code, name string
	if in.PackageStatus != nil {
		if statusID == 0 {
			statusID = in.PackageStatus.ID
		}
		code = in.PackageStatus.Code
		name = in.PackageStatus.Name
	}

	ev := Event{
		PackageID:       in.ID.String(),
		ExternalOrderID: firstNonEmpty(in.ImportedID.String(), in.ShopifyOrderID.String()),
		StatusLabel:     firstNonEmpty(name, code),
	}
	switch {
	case statusID == statusIDCreated || code == "created" || name == "Creado":
		ev.Kind = KindPackageCreated
	case statusID == statusIDCompleted || code == "completed" || code == "delivered" ||
		name == "Completado" || name == "Entregado":
		ev.Kind = KindShipmentCompleted
		ev.TrackingNumber = firstNonEmpty(in.InternalID.String(), in.ID.String())
		ev.TrackingURL = in.TrackingURL
		if ev.TrackingURL == "" {
			ev.TrackingURL = trackingSite + ev.TrackingNumber
		}
	default:
		ev.Kind = KindUnrecognized
	}
	return ev, nil
}

func parseLegacyShape(body []byte) (Event, error) {
	var in legacyShape
	if err := json.Unmarshal(body, &in); err != nil {
		return Event{}, &ValidationError{Field: "body", Msg: err.Error()}
	}
	pkgID := firstNonEmpty(in.PaqueteID.String(), in.ID.String())
	if pkgID == "" {
		return Event{}, NewValidationError("paquete_id")
	}
	ev := Event{
		PackageID:       pkgID,
		ExternalOrderID: in.ShopifyOrderID.String(),
		TrackingNumber:  in.TrackingNumber,
		TrackingURL:     in.TrackingURL,
		StatusLabel:     in.Event,
	}
	switch in.Event {
	case "paquete_creado", "package_created":
		ev.Kind = KindPackageCreated
	case "envio_completado", "shipment_completed":
		ev.Kind = KindShipmentCompleted
	default:
		ev.Kind = KindUnrecognized
	}
	return ev, nil
}

// EnsureTracking fills tracking defaults for shipment-completed events that
// arrived without them, using the package id as a last resort.
func (e *Event) EnsureTracking() {
	if e.TrackingNumber == "" {
		e.TrackingNumber = e.PackageID
	}
	if e.TrackingURL == "" {
		e.TrackingURL = trackingSite + e.TrackingNumber
	}
}

// EventType maps the canonical kind onto the audit event type.
func (e Event) EventType() string {
	switch e.Kind {
	case KindPackageCreated:
		return model.EventPackageCreated
	case KindShipmentCompleted:
		return model.EventShipmentCompleted
	default:
		return model.EventError
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
