package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

var fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type fakeCollection struct {
	dropped  bool
	docs     []any
	err      error
	calls    []string
	dropFail error
}

func (f *fakeCollection) Drop(context.Context) error {
	f.calls = append(f.calls, "drop")
	f.dropped = true
	return f.dropFail
}

func (f *fakeCollection) InsertMany(_ context.Context, docs []any) (int, error) {
	f.calls = append(f.calls, "insert")
	if f.err != nil {
		return 0, f.err
	}
	f.docs = append(f.docs, docs...)
	return len(docs), nil
}

func testSeeder() *Seeder {
	s := NewSeeder(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return fixedNow }
	return s
}

func lookup(doc bson.D, path ...string) any {
	var current any = doc
	for _, key := range path {
		d, ok := current.(bson.D)
		if !ok {
			return nil
		}
		current = nil
		for _, e := range d {
			if e.Key == key {
				current = e.Value
				break
			}
		}
	}
	return current
}

func TestSampleOrders(t *testing.T) {
	orders := SampleOrders(fixedNow)
	if len(orders) != 3 {
		t.Fatalf("len(SampleOrders()) = %d, want 3", len(orders))
	}

	want := []struct {
		id      int
		status  string
		channel string
		total   float64
		mode    string
	}{
		{1001, "DELIVERED", "Website", 1099.99, "Prepaid"},
		{1002, "DELIVERED", "Instagram", 769.99, "Prepaid"},
		{1003, "PENDING", "Facebook", 439.98, "COD"},
	}
	for i, tc := range want {
		order := orders[i]
		if got := lookup(order, "orderId"); got != tc.id {
			t.Fatalf("orders[%d].orderId = %v, want %d", i, got, tc.id)
		}
		if got := lookup(order, "status"); got != tc.status {
			t.Fatalf("orders[%d].status = %v, want %s", i, got, tc.status)
		}
		if got := lookup(order, "orderDetails", "orderChannel"); got != tc.channel {
			t.Fatalf("orders[%d].orderChannel = %v, want %s", i, got, tc.channel)
		}
		if got := lookup(order, "orderDetails", "totalPrice"); got != tc.total {
			t.Fatalf("orders[%d].totalPrice = %v, want %v", i, got, tc.total)
		}
		if got := lookup(order, "orderDetails", "paymentMode"); got != tc.mode {
			t.Fatalf("orders[%d].paymentMode = %v, want %s", i, got, tc.mode)
		}
		if got := lookup(order, "createdAt"); got != fixedNow {
			t.Fatalf("orders[%d].createdAt = %v, want %v", i, got, fixedNow)
		}
	}
	if got := lookup(orders[0], "buyerDetails", "permanentAddress", "emailId"); got != "john.doe@example.com" {
		t.Fatalf("emailId = %v, want john.doe@example.com", got)
	}
	products, ok := lookup(orders[2], "orderDetails", "products").(bson.A)
	if !ok || len(products) != 1 {
		t.Fatalf("orders[2].products = %#v, want one line", lookup(orders[2], "orderDetails", "products"))
	}
	if got := lookup(products[0].(bson.D), "quantity"); got != 2 {
		t.Fatalf("headphones quantity = %v, want 2", got)
	}
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)
	g1.now = func() time.Time { return fixedNow }
	g2.now = func() time.Time { return fixedNow }

	for i := 0; i < 10; i++ {
		o1 := g1.NextOrder()
		o2 := g2.NextOrder()
		if !reflect.DeepEqual(o1, o2) {
			t.Fatalf("order %d differs: %#v vs %#v", i, o1, o2)
		}
	}
}

func TestGeneratorOrderIDsAreSequential(t *testing.T) {
	g := NewGenerator(7)
	g.now = func() time.Time { return fixedNow }
	for i := 0; i < 25; i++ {
		order := g.NextOrder()
		if got := lookup(order, "orderId"); got != FirstGeneratedOrderID+i {
			t.Fatalf("orderId = %v, want %d", got, FirstGeneratedOrderID+i)
		}
		createdAt, ok := lookup(order, "createdAt").(time.Time)
		if !ok || createdAt.After(fixedNow) {
			t.Fatalf("createdAt = %v, want a time not after %v", lookup(order, "createdAt"), fixedNow)
		}
		total, ok := lookup(order, "orderDetails", "totalPrice").(float64)
		if !ok || total <= 0 {
			t.Fatalf("totalPrice = %v, want positive", lookup(order, "orderDetails", "totalPrice"))
		}
	}
}

func TestSeedInsertsSamplesAndGeneratedOrders(t *testing.T) {
	coll := &fakeCollection{}
	inserted, err := testSeeder().Seed(context.Background(), coll, Options{Count: 5, Seed: 1})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if inserted != 8 {
		t.Fatalf("Seed() inserted = %d, want 8", inserted)
	}
	if coll.dropped {
		t.Fatal("Seed() dropped the collection without Reset")
	}
	if got := lookup(coll.docs[0].(bson.D), "orderId"); got != 1001 {
		t.Fatalf("first orderId = %v, want 1001", got)
	}
	if got := lookup(coll.docs[3].(bson.D), "orderId"); got != FirstGeneratedOrderID {
		t.Fatalf("first generated orderId = %v, want %d", got, FirstGeneratedOrderID)
	}
}

func TestSeedResetDropsFirst(t *testing.T) {
	coll := &fakeCollection{}
	if _, err := testSeeder().Seed(context.Background(), coll, Options{Reset: true}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if !reflect.DeepEqual(coll.calls, []string{"drop", "insert"}) {
		t.Fatalf("calls = %v, want [drop insert]", coll.calls)
	}
	if len(coll.docs) != 3 {
		t.Fatalf("inserted %d docs, want 3", len(coll.docs))
	}
}

func TestSeedErrors(t *testing.T) {
	if _, err := testSeeder().Seed(context.Background(), &fakeCollection{}, Options{Count: -1}); err == nil {
		t.Fatal("expected error for negative count")
	}

	dropErr := errors.New("not authorized")
	_, err := testSeeder().Seed(context.Background(), &fakeCollection{dropFail: dropErr}, Options{Reset: true})
	if !errors.Is(err, dropErr) {
		t.Fatalf("Seed() error = %v, want %v", err, dropErr)
	}

	insertErr := errors.New("connection refused")
	_, err = testSeeder().Seed(context.Background(), &fakeCollection{err: insertErr}, Options{})
	if !errors.Is(err, insertErr) {
		t.Fatalf("Seed() error = %v, want %v", err, insertErr)
	}
}
