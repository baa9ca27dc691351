// Package inmemdb stores the application data in indexed in-memory tables. It backs the "memory" database engine
// and the tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
)

// Tables
const (
	tblGrants           = "subventions"
	tblLines            = "lignes_budget"
	tblExpenses         = "depenses"
	tblProjects         = "projets"
	tblGrantProjects    = "subvention_projets"
	tblProjectWorkshops = "projet_ateliers"
	tblWorkshops        = "ateliers_activite"
	tblSessions         = "sessions_activite"
	tblPresences        = "presences_activite"
	tblParticipants     = "participants"
	tblIndicators       = "projet_indicateurs"
	tblObjectives       = "objectifs"
	tblEvaluations      = "evaluations"
)

// Indexes
const (
	idxID          = "id"
	idxSecteur     = "secteur"
	idxYear        = "year"
	idxGrant       = "grant"
	idxLine        = "line"
	idxProject     = "project"
	idxWorkshop    = "workshop"
	idxSession     = "session"
	idxParticipant = "participant"
)

var errReadOnly = errors.New("write attempted in a read-only transaction")

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: idxID, Unique: true, Indexer: &memdb.IntFieldIndex{Field: "ID"}}
}

func intIndex(name, field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: name, Indexer: &memdb.IntFieldIndex{Field: field}}
}

func secteurIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: idxSecteur, Indexer: &memdb.StringFieldIndex{Field: "Secteur", Lowercase: true}}
}

func table(name string, indexes ...*memdb.IndexSchema) *memdb.TableSchema {
	ts := &memdb.TableSchema{Name: name, Indexes: map[string]*memdb.IndexSchema{idxID: idIndex()}}
	for _, idx := range indexes {
		ts.Indexes[idx.Name] = idx
	}
	return ts
}

func schema() *memdb.DBSchema {
	tables := []*memdb.TableSchema{
		table(tblGrants, secteurIndex(), intIndex(idxYear, "Year")),
		table(tblLines, intIndex(idxGrant, "GrantID")),
		table(tblExpenses, intIndex(idxLine, "LineID")),
		table(tblProjects, secteurIndex()),
		table(tblGrantProjects, intIndex(idxGrant, "GrantID"), intIndex(idxProject, "ProjectID")),
		table(tblProjectWorkshops, intIndex(idxProject, "ProjectID")),
		table(tblWorkshops, secteurIndex()),
		table(tblSessions, intIndex(idxWorkshop, "WorkshopID")),
		table(tblPresences, intIndex(idxSession, "SessionID"), intIndex(idxParticipant, "ParticipantID")),
		table(tblParticipants),
		table(tblIndicators, intIndex(idxProject, "ProjectID")),
		table(tblObjectives, intIndex(idxProject, "ProjectID")),
		table(tblEvaluations, intIndex(idxSession, "SessionID")),
	}
	s := &memdb.DBSchema{Tables: make(map[string]*memdb.TableSchema, len(tables))}
	for _, t := range tables {
		s.Tables[t.Name] = t
	}
	return s
}

type DB struct {
	mem *memdb.MemDB

	seqMu sync.Mutex
	seq   map[string]int
}

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	mem, err := memdb.NewMemDB(schema())
	if err != nil {
		// the schema is static
		panic(err)
	}
	return &DB{mem: mem, seq: make(map[string]int)}
}

// nextID returns the next primary key of `tbl`.
func (db *DB) nextID(tbl string) int {
	db.seqMu.Lock()
	defer db.seqMu.Unlock()
	db.seq[tbl]++
	return db.seq[tbl]
}

// assignID returns `id`, or the next primary key of `tbl` when it is 0.
// Explicit ids are never handed out again.
func (db *DB) assignID(tbl string, id int) int {
	if id == 0 {
		return db.nextID(tbl)
	}
	db.seqMu.Lock()
	defer db.seqMu.Unlock()
	if id > db.seq[tbl] {
		db.seq[tbl] = id
	}
	return id
}

type txKey struct{}

type ctxTx struct {
	txn   *memdb.Txn
	write bool
}

// InTx runs `fn` in a memdb transaction. Read transactions see a snapshot; write transactions are serialized
// and committed only when `fn` succeeds. A transaction already carried by `ctx` is reused.
func (db *DB) InTx(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*ctxTx); ok {
		if !readOnly && !tx.write {
			return errReadOnly
		}
		return fn(ctx)
	}

	tx := &ctxTx{txn: db.mem.Txn(!readOnly), write: !readOnly}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		tx.txn.Abort()
		return err
	}
	tx.txn.Commit()
	return nil
}

// run calls `fn` with the transaction of `ctx`, or with a transaction of its own when there is none.
func (db *DB) run(ctx context.Context, write bool, fn func(txn *memdb.Txn) error) error {
	if tx, ok := ctx.Value(txKey{}).(*ctxTx); ok {
		if write && !tx.write {
			return errReadOnly
		}
		return fn(tx.txn)
	}
	txn := db.mem.Txn(write)
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

// each calls `fn` with every object of `tbl` matching `index` and `args`.
func each(txn *memdb.Txn, tbl, index string, fn func(obj interface{}), args ...interface{}) error {
	it, err := txn.Get(tbl, index, args...)
	if err != nil {
		return errors.Wrapf(err, "iterating %s", tbl)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		fn(obj)
	}
	return nil
}

// first returns the object of `tbl` with primary key `id`, nil when there is none.
func first(txn *memdb.Txn, tbl string, id int) (interface{}, error) {
	obj, err := txn.First(tbl, idxID, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %d", tbl, id)
	}
	return obj, nil
}

func insert(txn *memdb.Txn, tbl string, obj interface{}) error {
	return errors.Wrapf(txn.Insert(tbl, obj), "inserting into %s", tbl)
}
