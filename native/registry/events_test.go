package registry

import (
	"encoding/hex"
	"testing"
)

func TestRegisteredEventAttributes(t *testing.T) {
	owner := newTestAddress(0x11)
	prop := &Property{
		ID:          3,
		Owner:       owner,
		Location:    "Downtown Toronto",
		MetadataURI: "ipfs://QmXyZ123abc/property1.json",
		Price:       est(750),
	}
	evt := NewRegisteredEvent(prop)
	if evt.Type != EventTypePropertyRegistered {
		t.Fatalf("unexpected event type %s", evt.Type)
	}
	if evt.Attributes["id"] != "3" {
		t.Fatalf("id attribute: %s", evt.Attributes["id"])
	}
	if evt.Attributes["owner"] != hex.EncodeToString(owner[:]) {
		t.Fatalf("owner attribute: %s", evt.Attributes["owner"])
	}
	if evt.Attributes["price"] != est(750).String() {
		t.Fatalf("price attribute: %s", evt.Attributes["price"])
	}
	if evt.Attributes["location"] != prop.Location || evt.Attributes["metadataURI"] != prop.MetadataURI {
		t.Fatalf("descriptive attributes missing: %+v", evt.Attributes)
	}
}

func TestApprovalEventDistinguishesAI(t *testing.T) {
	prop := &Property{ID: 1, Price: est(500)}
	human := NewApprovalEvent(prop, newTestAddress(0x22), true, false)
	ai := NewApprovalEvent(prop, newTestAddress(0x33), true, true)
	if human.Attributes["ai"] != "false" || ai.Attributes["ai"] != "true" {
		t.Fatalf("ai attribute must distinguish the validator path")
	}
	if human.Attributes["approved"] != "true" {
		t.Fatalf("approved attribute: %+v", human.Attributes)
	}
}

func TestTransferredEventAttributes(t *testing.T) {
	from := newTestAddress(0x44)
	to := newTestAddress(0x55)
	receipt := &TransferReceipt{PropertyID: 9, From: from, To: to, Price: est(1250)}
	evt := NewTransferredEvent(receipt)
	if evt.Type != EventTypePropertyTransferred {
		t.Fatalf("unexpected event type %s", evt.Type)
	}
	if evt.Attributes["from"] != hex.EncodeToString(from[:]) || evt.Attributes["to"] != hex.EncodeToString(to[:]) {
		t.Fatalf("party attributes wrong: %+v", evt.Attributes)
	}
	if evt.Attributes["price"] != est(1250).String() {
		t.Fatalf("price attribute wrong: %+v", evt.Attributes)
	}
}

func TestEventConstructorsTolerateNil(t *testing.T) {
	if evt := NewRegisteredEvent(nil); len(evt.Attributes) != 0 {
		t.Fatalf("nil property should produce empty attributes")
	}
	if evt := NewTransferredEvent(nil); len(evt.Attributes) != 0 {
		t.Fatalf("nil receipt should produce empty attributes")
	}
}
