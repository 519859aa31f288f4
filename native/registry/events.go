package registry

import (
	"encoding/hex"
	"strconv"

	"estatechain/core/types"
)

const (
	EventTypePropertyRegistered  = "registry.property.registered"
	EventTypePropertyListed      = "registry.property.listed"
	EventTypeApprovalGiven       = "registry.approval.given"
	EventTypePropertyTransferred = "registry.property.transferred"
)

// NewRegisteredEvent returns the canonical event payload for a newly registered
// property.
func NewRegisteredEvent(p *Property) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypePropertyRegistered, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["owner"] = hex.EncodeToString(p.Owner[:])
	attrs["location"] = p.Location
	attrs["metadataURI"] = p.MetadataURI
	attrs["price"] = priceString(p)
	return &types.Event{Type: EventTypePropertyRegistered, Attributes: attrs}
}

// NewListedEvent returns the canonical event payload emitted when a listing is
// repriced or its for-sale flag changes.
func NewListedEvent(p *Property) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: EventTypePropertyListed, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["price"] = priceString(p)
	attrs["isForSale"] = strconv.FormatBool(p.IsForSale)
	return &types.Event{Type: EventTypePropertyListed, Attributes: attrs}
}

// NewApprovalEvent returns the canonical event payload emitted when any party
// records an approval decision. The ai attribute distinguishes the validator
// path from the buyer/seller path.
func NewApprovalEvent(p *Property, caller [20]byte, approved, ai bool) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
	}
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["approved"] = strconv.FormatBool(approved)
	attrs["ai"] = strconv.FormatBool(ai)
	return &types.Event{Type: EventTypeApprovalGiven, Attributes: attrs}
}

// NewTransferredEvent returns the canonical event payload for a completed
// purchase. The price attribute is authoritative for indexers; all other state
// should be re-fetched.
func NewTransferredEvent(receipt *TransferReceipt) *types.Event {
	attrs := make(map[string]string)
	if receipt == nil {
		return &types.Event{Type: EventTypePropertyTransferred, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(receipt.PropertyID, 10)
	attrs["from"] = hex.EncodeToString(receipt.From[:])
	attrs["to"] = hex.EncodeToString(receipt.To[:])
	if receipt.Price != nil {
		attrs["price"] = receipt.Price.String()
	} else {
		attrs["price"] = "0"
	}
	return &types.Event{Type: EventTypePropertyTransferred, Attributes: attrs}
}

func priceString(p *Property) string {
	if p == nil || p.Price == nil {
		return "0"
	}
	return p.Price.String()
}
