package registry

import (
	"fmt"
	"math/big"
	"strings"
)

// minListingPrice is 0.5 EST in wei. Registration and relisting both reject
// prices below it.
var minListingPrice = new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))

// MinListingPrice returns the minimum allowed listing price in wei. Clients
// should pre-validate against it before submitting a registration.
func MinListingPrice() *big.Int {
	return new(big.Int).Set(minListingPrice)
}

// Property captures one listing/escrow unit managed by the registry. Approval
// flags are independent booleans; a transfer requires all three plus the
// for-sale flag simultaneously.
type Property struct {
	ID             uint64   `json:"id"`
	Owner          [20]byte `json:"owner"`
	Location       string   `json:"location"`
	MetadataURI    string   `json:"metadataURI"`
	Price          *big.Int `json:"price"`
	IsForSale      bool     `json:"isForSale"`
	AIApproved     bool     `json:"aiApproved"`
	BuyerApproved  bool     `json:"buyerApproved"`
	SellerApproved bool     `json:"sellerApproved"`
}

// Clone returns a deep copy of the property so callers can safely mutate the
// copy without affecting the stored instance.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Price != nil {
		clone.Price = new(big.Int).Set(p.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeProperty validates and normalises the supplied property record,
// returning a cloned instance with trimmed strings and a non-nil price. The
// function does not mutate the original value.
func SanitizeProperty(p *Property) (*Property, error) {
	if p == nil {
		return nil, fmt.Errorf("nil property")
	}
	clone := p.Clone()
	clone.Location = strings.TrimSpace(clone.Location)
	clone.MetadataURI = strings.TrimSpace(clone.MetadataURI)
	if clone.ID == 0 {
		return nil, fmt.Errorf("property id must be positive")
	}
	if clone.Price.Cmp(minListingPrice) < 0 {
		return nil, fmt.Errorf("property price below minimum: %s", clone.Price)
	}
	return clone, nil
}

// TransferReceipt records a completed purchase: ownership moved from the
// previous owner to the buyer at the stated price.
type TransferReceipt struct {
	PropertyID uint64   `json:"propertyId"`
	From       [20]byte `json:"from"`
	To         [20]byte `json:"to"`
	Price      *big.Int `json:"price"`
}
