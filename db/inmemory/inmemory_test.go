package inmemory

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/zkforge/proofhost/db"
)

func TestWriteTx(t *testing.T) {
	c := qt.New(t)
	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	key := []byte("key")
	value := []byte("value")

	wTx := database.WriteTx()
	c.Assert(wTx.Set(key, value), qt.IsNil)
	_, err = database.Get(key)
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	got, err := wTx.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, value)

	c.Assert(wTx.Commit(), qt.IsNil)
	got, err = database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, value)
}

func TestConflict(t *testing.T) {
	c := qt.New(t)
	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	key := []byte("key")

	tx1 := database.WriteTx()
	tx2 := database.WriteTx()
	c.Assert(tx1.Set(key, []byte{1}), qt.IsNil)
	c.Assert(tx2.Set(key, []byte{2}), qt.IsNil)

	c.Assert(tx1.Commit(), qt.IsNil)
	c.Assert(tx2.Commit(), qt.ErrorIs, db.ErrConflict)

	got, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []byte{1})
}

func TestIterateOrder(t *testing.T) {
	c := qt.New(t)
	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	wTx := database.WriteTx()
	for _, k := range []string{"r/b", "r/a", "r/c", "x/z"} {
		c.Assert(wTx.Set([]byte(k), []byte(k)), qt.IsNil)
	}
	c.Assert(wTx.Commit(), qt.IsNil)

	var keys []string
	c.Assert(database.Iterate([]byte("r/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"r/a", "r/b", "r/c"})
}
