package registry

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"estatechain/core/events"
	"estatechain/core/types"
)

var errNilState = errors.New("registry: state not configured")

// State abstracts property persistence so the registry can run over an
// in-memory map in tests and a KV-backed store in production. Implementations
// must return defensive copies from PropertyGet.
type State interface {
	PropertyPut(*Property) error
	PropertyGet(id uint64) (*Property, bool, error)
	PropertyCount() (uint64, error)
	SetPropertyCount(uint64) error
}

// Ledger moves funds between accounts during settlement. The registry calls it
// exactly once per successful purchase, inside the critical section.
type Ledger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Registry owns all property records and enforces the four-party escrow
// protocol gating ownership transfer. The execution model it was ported from
// totally orders all mutating calls, so every operation here runs under one
// exclusive lock per instance; concurrent approvals and purchases on the same
// id never interleave.
type Registry struct {
	mu          sync.RWMutex
	aiValidator [20]byte
	state       State
	ledger      Ledger
	emitter     events.Emitter
}

// NewRegistry creates a registry bound to the given AI validator identity. The
// validator is fixed for the lifetime of the instance; only that identity may
// record the AI approval. The registry starts on an in-memory state and a
// no-op emitter; both can be replaced before use.
func NewRegistry(aiValidator [20]byte) *Registry {
	return &Registry{
		aiValidator: aiValidator,
		state:       NewMemoryState(),
		emitter:     events.NoopEmitter{},
	}
}

// SetState configures the persistence backend. Passing nil is ignored.
func (r *Registry) SetState(state State) {
	if state == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// SetLedger attaches a settlement ledger. With no ledger attached the registry
// still enforces the exact-funds check and reports the movement in the
// receipt; actual fund custody is then the caller's responsibility.
func (r *Registry) SetLedger(ledger Ledger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledger = ledger
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// AIValidator returns the fixed validator identity.
func (r *Registry) AIValidator() [20]byte {
	return r.aiValidator
}

func (r *Registry) emit(evt *types.Event) {
	if r.emitter == nil || evt == nil {
		return
	}
	r.emitter.Emit(registryEvent{evt: evt})
}

func (r *Registry) loadProperty(id uint64) (*Property, error) {
	if r.state == nil {
		return nil, errNilState
	}
	prop, ok, err := r.state.PropertyGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrPropertyNotFound, id)
	}
	return prop, nil
}

// Register creates a new listing owned by the caller and returns its id. Ids
// are sequential and 1-based. The property starts unlisted with all approval
// flags cleared.
func (r *Registry) Register(caller [20]byte, location, metadataURI string, price *big.Int) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return 0, errNilState
	}
	if price == nil || price.Cmp(minListingPrice) < 0 {
		return 0, fmt.Errorf("%w: got %s wei", ErrPriceTooLow, bigString(price))
	}
	count, err := r.state.PropertyCount()
	if err != nil {
		return 0, err
	}
	prop := &Property{
		ID:          count + 1,
		Owner:       caller,
		Location:    strings.TrimSpace(location),
		MetadataURI: strings.TrimSpace(metadataURI),
		Price:       new(big.Int).Set(price),
	}
	if err := r.state.PropertyPut(prop); err != nil {
		return 0, err
	}
	if err := r.state.SetPropertyCount(prop.ID); err != nil {
		return 0, err
	}
	r.emit(NewRegisteredEvent(prop))
	return prop.ID, nil
}

// UpdateListing reprices a property and sets its for-sale flag. Only the
// current owner may relist. Approval flags are deliberately left untouched:
// relisting mid-approval is allowed, and approvals only reset on a completed
// transfer.
func (r *Registry) UpdateListing(caller [20]byte, id uint64, newPrice *big.Int, forSale bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, err := r.loadProperty(id)
	if err != nil {
		return err
	}
	if prop.Owner != caller {
		return fmt.Errorf("%w: only the owner may update listing %d", ErrUnauthorized, id)
	}
	if newPrice == nil || newPrice.Cmp(minListingPrice) < 0 {
		return fmt.Errorf("%w: got %s wei", ErrPriceTooLow, bigString(newPrice))
	}
	prop.Price = new(big.Int).Set(newPrice)
	prop.IsForSale = forSale
	if err := r.state.PropertyPut(prop); err != nil {
		return err
	}
	r.emit(NewListedEvent(prop))
	return nil
}

// ApprovePurchase records a buyer or seller approval. The caller's role is
// decided by comparing against the stored owner: the owner sets the seller
// flag, anyone else sets the buyer flag. Exactly one buyer candidate is
// tracked at a time, keyed implicitly by whoever called most recently, so a
// third party can overwrite a legitimate buyer's approval. This is a known
// limitation carried over from the source protocol.
func (r *Registry) ApprovePurchase(caller [20]byte, id uint64, approval bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, err := r.loadProperty(id)
	if err != nil {
		return err
	}
	if caller == prop.Owner {
		prop.SellerApproved = approval
	} else {
		prop.BuyerApproved = approval
	}
	if err := r.state.PropertyPut(prop); err != nil {
		return err
	}
	r.emit(NewApprovalEvent(prop, caller, approval, false))
	return nil
}

// AIApprove records the validator's decision. Strictly the identity fixed at
// construction may call it.
func (r *Registry) AIApprove(caller [20]byte, id uint64, approval bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.aiValidator {
		return fmt.Errorf("%w: only the AI validator may approve", ErrUnauthorized)
	}
	prop, err := r.loadProperty(id)
	if err != nil {
		return err
	}
	prop.AIApproved = approval
	if err := r.state.PropertyPut(prop); err != nil {
		return err
	}
	r.emit(NewApprovalEvent(prop, caller, approval, true))
	return nil
}

// CompletePurchase executes the transfer. It succeeds only when the property
// is for sale, all three approvals are present, the sent funds match the price
// exactly, and the caller is not the current owner. On success ownership moves
// to the caller and the for-sale and approval flags all reset; the transfer
// consumes every prior approval. Any failure leaves state completely
// unchanged.
func (r *Registry) CompletePurchase(caller [20]byte, id uint64, funds *big.Int) (*TransferReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, err := r.loadProperty(id)
	if err != nil {
		return nil, err
	}
	if !prop.IsForSale {
		return nil, fmt.Errorf("%w: id %d", ErrNotForSale, id)
	}
	if missing := missingApprovals(prop); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrApprovalIncomplete, strings.Join(missing, ", "))
	}
	sent := big.NewInt(0)
	if funds != nil {
		sent = funds
	}
	switch sent.Cmp(prop.Price) {
	case -1:
		diff := new(big.Int).Sub(prop.Price, sent)
		return nil, fmt.Errorf("%w: underpaid by %s wei", ErrFundsMismatch, diff)
	case 1:
		diff := new(big.Int).Sub(sent, prop.Price)
		return nil, fmt.Errorf("%w: overpaid by %s wei", ErrFundsMismatch, diff)
	}
	if caller == prop.Owner {
		return nil, fmt.Errorf("%w: id %d", ErrInvalidBuyer, id)
	}
	seller := prop.Owner
	price := new(big.Int).Set(prop.Price)
	if r.ledger != nil {
		if err := r.ledger.Transfer(caller, seller, price); err != nil {
			return nil, err
		}
	}
	prop.Owner = caller
	prop.IsForSale = false
	prop.AIApproved = false
	prop.BuyerApproved = false
	prop.SellerApproved = false
	if err := r.state.PropertyPut(prop); err != nil {
		if r.ledger != nil {
			// Undo the settlement so a storage failure cannot strand funds.
			if refundErr := r.ledger.Transfer(seller, caller, price); refundErr != nil {
				return nil, fmt.Errorf("store property after settlement: %w (refund failed: %v)", err, refundErr)
			}
		}
		return nil, err
	}
	receipt := &TransferReceipt{PropertyID: id, From: seller, To: caller, Price: price}
	r.emit(NewTransferredEvent(receipt))
	return receipt, nil
}

// GetProperty returns a read-only projection of the property record.
func (r *Registry) GetProperty(id uint64) (*Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadProperty(id)
}

// Count returns the number of registered properties, which is also the last
// assigned id. External enumeration walks ids 1..Count.
func (r *Registry) Count() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return 0, errNilState
	}
	return r.state.PropertyCount()
}

func missingApprovals(p *Property) []string {
	missing := make([]string, 0, 3)
	if !p.AIApproved {
		missing = append(missing, "ai")
	}
	if !p.BuyerApproved {
		missing = append(missing, "buyer")
	}
	if !p.SellerApproved {
		missing = append(missing, "seller")
	}
	return missing
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
