package mockapi

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-memdb"
)

const (
	tableUsers   = "users"
	tableTokens  = "tokens"
	tableRecords = "records"
)

var dbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableUsers: {
			Name: tableUsers,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.IntFieldIndex{Field: "ID"},
				},
				"email": {
					Name:    "email",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
				},
			},
		},
		tableTokens: {
			Name: tableTokens,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Token"},
				},
				"userID": {
					Name:    "userID",
					Indexer: &memdb.IntFieldIndex{Field: "UserID"},
				},
			},
		},
		tableRecords: {
			Name: tableRecords,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:   "id",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Collection"},
							&memdb.IntFieldIndex{Field: "ID"},
						},
					},
				},
				"collection": {
					Name:    "collection",
					Indexer: &memdb.StringFieldIndex{Field: "Collection"},
				},
			},
		},
	},
}

// User is an account the mock backend accepts at the login endpoint
type User struct {
	ID             int64
	Name           string
	Email          string
	Password       string
	RoleID         int64
	OrganizationID int64 // zero for users without organization
}

type token struct {
	Token  string
	UserID int64
}

type record struct {
	Collection string
	ID         int64
	Fields     map[string]any
}

// store wraps the in-memory database
type store struct {
	db *memdb.MemDB

	mu     sync.Mutex
	nextID map[string]int64
}

func newStore() (*store, error) {
	db, err := memdb.NewMemDB(dbSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create mock database: %w", err)
	}
	return &store{db: db, nextID: map[string]int64{}}, nil
}

func (s *store) insert(table string, obj any) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(table, obj); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *store) userByEmail(email string) (*User, error) {
	txn := s.db.Txn(false)
	obj, err := txn.First(tableUsers, "email", email)
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*User), nil
}

func (s *store) userByID(id int64) (*User, error) {
	txn := s.db.Txn(false)
	obj, err := txn.First(tableUsers, "id", id)
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*User), nil
}

func (s *store) userByToken(raw string) (*User, error) {
	txn := s.db.Txn(false)
	obj, err := txn.First(tableTokens, "id", raw)
	if err != nil || obj == nil {
		return nil, err
	}
	return s.userByID(obj.(*token).UserID)
}

func (s *store) revokeTokens() error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tableTokens, "id_prefix", ""); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *store) allocateID(collection string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID[collection]++
	return s.nextID[collection]
}

func (s *store) create(collection string, fields map[string]any) (*record, error) {
	rec := &record{Collection: collection, ID: s.allocateID(collection), Fields: fields}
	if err := s.insert(tableRecords, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *store) get(collection string, id int64) (*record, error) {
	txn := s.db.Txn(false)
	obj, err := txn.First(tableRecords, "id", collection, id)
	if err != nil || obj == nil {
		return nil, err
	}
	return obj.(*record), nil
}

// replace stores new fields for an existing record; merge keeps fields absent from the update
func (s *store) replace(collection string, id int64, fields map[string]any, merge bool) (*record, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(tableRecords, "id", collection, id)
	if err != nil || obj == nil {
		return nil, err
	}
	current := obj.(*record)

	next := make(map[string]any, len(fields))
	if merge {
		for k, v := range current.Fields {
			next[k] = v
		}
	}
	for k, v := range fields {
		next[k] = v
	}

	// Objects in memdb are immutable once inserted
	updated := &record{Collection: collection, ID: id, Fields: next}
	if err := txn.Insert(tableRecords, updated); err != nil {
		return nil, err
	}
	txn.Commit()
	return updated, nil
}

func (s *store) delete(collection string, id int64) (bool, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(tableRecords, "id", collection, id)
	if err != nil || obj == nil {
		return false, err
	}
	if err := txn.Delete(tableRecords, obj); err != nil {
		return false, err
	}
	txn.Commit()
	return true, nil
}

// list returns the records of a collection matching search, ordered by id
func (s *store) list(collection, search string) ([]*record, error) {
	txn := s.db.Txn(false)
	it, err := txn.Get(tableRecords, "collection", collection)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	var out []*record
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rec := obj.(*record)
		if needle == "" || rec.matches(needle) {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b *record) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *record) matches(needle string) bool {
	for _, v := range r.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func (r *record) body() map[string]any {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	return out
}
