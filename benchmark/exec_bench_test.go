package benchmark

import (
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/coregx/quill"
)

type item struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

func setupBenchDB(b *testing.B, opts ...quill.Option) *quill.DB {
	b.Helper()
	opts = append([]quill.Option{quill.WithMaxOpenConns(1)}, opts...)
	db, err := quill.Open("sqlite", ":memory:", opts...)
	if err != nil {
		b.Fatalf("open: %v", err)
	}
	b.Cleanup(func() { db.Close() })

	if _, err := db.NewQuery(`CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`).Execute(); err != nil {
		b.Fatalf("create table: %v", err)
	}
	ins := db.Insert("items").Columns("name")
	for i := range 100 {
		ins.Values(fmt.Sprintf("item %d", i))
	}
	if _, err := ins.Execute(); err != nil {
		b.Fatalf("seed: %v", err)
	}
	return db
}

func BenchmarkExec_Select(b *testing.B) {
	db := setupBenchDB(b)
	b.ReportAllocs()
	var items []item
	for b.Loop() {
		if err := db.Select("id", "name").From("items").Where("id", quill.OpLte, 10).All(&items); err != nil {
			b.Fatal(err)
		}
	}
}

// The statement cache is the difference between these two.
func BenchmarkExec_StatementCache(b *testing.B) {
	for _, capacity := range []int{1, 128} {
		b.Run(fmt.Sprintf("capacity=%d", capacity), func(b *testing.B) {
			db := setupBenchDB(b, quill.WithStmtCacheCapacity(capacity))
			b.ReportAllocs()
			i := 0
			for b.Loop() {
				i++
				q := db.Select("name").From("items")
				if i%2 == 0 {
					q.Where("id", quill.OpEq, i%100)
				} else {
					q.WhereIn("id", 1, 2, 3)
				}
				if _, err := q.Rows(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkExec_Transactional(b *testing.B) {
	db := setupBenchDB(b)
	b.ReportAllocs()
	for b.Loop() {
		err := db.Transactional(b.Context(), func(tx *quill.Tx) error {
			_, err := tx.Update("items").Increment("id", 0).Where("id", quill.OpEq, 1).Execute()
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
