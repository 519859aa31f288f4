package registry

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"estatechain/storage"
)

// MemoryState keeps properties in a plain map. It backs a freshly constructed
// registry and is the state of choice for tests.
type MemoryState struct {
	mu         sync.RWMutex
	properties map[uint64]*Property
	count      uint64
}

func NewMemoryState() *MemoryState {
	return &MemoryState{properties: make(map[uint64]*Property)}
}

func (m *MemoryState) PropertyPut(p *Property) error {
	sanitized, err := SanitizeProperty(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[sanitized.ID] = sanitized
	return nil
}

func (m *MemoryState) PropertyGet(id uint64) (*Property, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prop, ok := m.properties[id]
	if !ok {
		return nil, false, nil
	}
	return prop.Clone(), true, nil
}

func (m *MemoryState) PropertyCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count, nil
}

func (m *MemoryState) SetPropertyCount(count uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = count
	return nil
}

const (
	propertyKeyPrefix = "registry/property/"
	propertyCountKey  = "registry/propertyCount"
)

// storedProperty is the durable wire form of a property record. Addresses are
// hex encoded and the price travels as a decimal wei string so records stay
// readable in db inspection tools.
type storedProperty struct {
	ID             uint64 `json:"id"`
	Owner          string `json:"owner"`
	Location       string `json:"location"`
	MetadataURI    string `json:"metadataURI"`
	Price          string `json:"price"`
	IsForSale      bool   `json:"isForSale"`
	AIApproved     bool   `json:"aiApproved"`
	BuyerApproved  bool   `json:"buyerApproved"`
	SellerApproved bool   `json:"sellerApproved"`
}

// Store persists property records to a key-value database, one record per
// property plus a count key.
type Store struct {
	db storage.Database
}

func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func propertyKey(id uint64) []byte {
	return []byte(propertyKeyPrefix + strconv.FormatUint(id, 10))
}

func (s *Store) PropertyPut(p *Property) error {
	sanitized, err := SanitizeProperty(p)
	if err != nil {
		return err
	}
	record := storedProperty{
		ID:             sanitized.ID,
		Owner:          hex.EncodeToString(sanitized.Owner[:]),
		Location:       sanitized.Location,
		MetadataURI:    sanitized.MetadataURI,
		Price:          sanitized.Price.String(),
		IsForSale:      sanitized.IsForSale,
		AIApproved:     sanitized.AIApproved,
		BuyerApproved:  sanitized.BuyerApproved,
		SellerApproved: sanitized.SellerApproved,
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Put(propertyKey(sanitized.ID), encoded)
}

func (s *Store) PropertyGet(id uint64) (*Property, bool, error) {
	encoded, err := s.db.Get(propertyKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var record storedProperty
	if err := json.Unmarshal(encoded, &record); err != nil {
		return nil, false, fmt.Errorf("decode property %d: %w", id, err)
	}
	ownerBytes, err := hex.DecodeString(record.Owner)
	if err != nil || len(ownerBytes) != 20 {
		return nil, false, fmt.Errorf("decode property %d owner", id)
	}
	price, ok := new(big.Int).SetString(record.Price, 10)
	if !ok {
		return nil, false, fmt.Errorf("decode property %d price", id)
	}
	prop := &Property{
		ID:             record.ID,
		Location:       record.Location,
		MetadataURI:    record.MetadataURI,
		Price:          price,
		IsForSale:      record.IsForSale,
		AIApproved:     record.AIApproved,
		BuyerApproved:  record.BuyerApproved,
		SellerApproved: record.SellerApproved,
	}
	copy(prop.Owner[:], ownerBytes)
	return prop, true, nil
}

func (s *Store) PropertyCount() (uint64, error) {
	encoded, err := s.db.Get([]byte(propertyCountKey))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	count, err := strconv.ParseUint(string(encoded), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode property count: %w", err)
	}
	return count, nil
}

func (s *Store) SetPropertyCount(count uint64) error {
	return s.db.Put([]byte(propertyCountKey), []byte(strconv.FormatUint(count, 10)))
}
