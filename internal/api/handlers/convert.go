package handlers

import (
	"github.com/aegisdns/aegisdns/internal/api/models"
	"github.com/aegisdns/aegisdns/internal/dns"
	"github.com/aegisdns/aegisdns/internal/store"
)

// toResponse renders a stored record as its JSON DTO.
func toResponse(r store.Record) models.RecordResponse {
	class := "IN"
	return models.RecordResponse{
		Name:       r.Name,
		IP:         r.IP,
		TTL:        r.TTL,
		RecordType: r.Type.String(),
		Class:      class,
		Value:      r.Value,
	}
}

// fromUpdateRequest builds a Record from a POST /update body. Validation
// happens separately in store.Record.Validate.
func fromUpdateRequest(req models.UpdateRequest) store.Record {
	rtype, _ := dns.ParseRecordType(req.RecordType)
	return store.Record{
		Name:  req.Name,
		IP:    req.IP,
		TTL:   req.TTL,
		Type:  rtype,
		Class: dns.ClassIN,
		Value: req.Value,
	}
}

// fromPatchRequest builds a partial Record from a PUT body: zero-value
// fields mean "leave as-is", matching store.Merge's semantics.
func fromPatchRequest(req models.PatchRequest) store.Record {
	patch := store.Record{
		IP:    req.IP,
		Class: dns.ClassIN,
		Value: req.Value,
	}
	if req.TTL != nil {
		patch.TTL = *req.TTL
	}
	if req.RecordType != "" {
		if rtype, ok := dns.ParseRecordType(req.RecordType); ok {
			patch.Type = rtype
		}
	}
	return patch
}
