package future

import (
	"errors"
	"testing"

	"github.com/cynet/meshcore/topic"
)

func newTestTopic() *topic.Topic {
	_, tp := newTestStoreAndTopic()
	return tp
}

func newTestStoreAndTopic() (*topic.Store, *topic.Topic) {
	s := topic.NewStore()
	tp, err := s.Create(0, "/ns", "u", "t", 0, topic.Hooks{})
	if err != nil {
		panic(err)
	}
	return s, tp
}

func TestPublishWithFutureSuccess(t *testing.T) {
	tp := newTestTopic()
	r := NewRegistry()
	f := &topic.Future{TransferIDMasked: 1}

	var published bool
	err := PublishWithFuture(tp, f, 1000, []byte("hi"), func(*topic.Topic, int64, []byte) error {
		published = true
		return nil
	}, r)
	if err != nil {
		t.Fatal(err)
	}
	if !published {
		t.Fatal("publish callback not invoked")
	}
	if _, ok := tp.Futures.Find(1); !ok {
		t.Fatal("future missing from topic transfer-id index")
	}
	if _, _, ok := r.byDeadline.Min(); !ok {
		t.Fatal("future missing from global deadline index")
	}
}

func TestPublishWithFutureRollsBackOnFailure(t *testing.T) {
	tp := newTestTopic()
	r := NewRegistry()
	f := &topic.Future{TransferIDMasked: 1}

	err := PublishWithFuture(tp, f, 1000, nil, func(*topic.Topic, int64, []byte) error {
		return errors.New("boom")
	}, r)
	if err == nil {
		t.Fatal("expected publish failure to propagate")
	}
	if _, ok := tp.Futures.Find(1); ok {
		t.Fatal("transfer-id reservation should be rolled back on publish failure")
	}
}

func TestPublishWithFutureRejectsInFlightDuplicate(t *testing.T) {
	tp := newTestTopic()
	r := NewRegistry()
	f1 := &topic.Future{TransferIDMasked: 1}
	f2 := &topic.Future{TransferIDMasked: 1}

	noop := func(*topic.Topic, int64, []byte) error { return nil }
	if err := PublishWithFuture(tp, f1, 1000, nil, noop, r); err != nil {
		t.Fatal(err)
	}
	if err := PublishWithFuture(tp, f2, 1000, nil, noop, r); err == nil {
		t.Fatal("expected rejection of a transfer-id already in flight")
	}
}

func TestDeliverResponseMarksSuccessAndRemoves(t *testing.T) {
	store, tp := newTestStoreAndTopic()
	r := NewRegistry()
	f := &topic.Future{TransferIDMasked: 1}
	PublishWithFuture(tp, f, 1000, nil, func(*topic.Topic, int64, []byte) error { return nil }, r)

	called := false
	f.Callback = func(done *topic.Future) {
		called = true
		if done.State != topic.FutureSuccess {
			t.Fatalf("callback saw state %v, want FutureSuccess", done.State)
		}
	}

	if ok := DeliverResponse(store, r, tp.Hash, 1, []byte("resp")); !ok {
		t.Fatal("DeliverResponse should find the matching future")
	}
	if !called {
		t.Fatal("callback not invoked")
	}
	if _, ok := tp.Futures.Find(1); ok {
		t.Fatal("future should be removed from topic index after delivery")
	}
	if _, _, ok := r.byDeadline.Min(); ok {
		t.Fatal("future should be removed from deadline index after delivery")
	}
}

func TestSweepDeadlinesFailsExpiredOnce(t *testing.T) {
	tp := newTestTopic()
	r := NewRegistry()
	f := &topic.Future{TransferIDMasked: 1}
	PublishWithFuture(tp, f, 1000, nil, func(*topic.Topic, int64, []byte) error { return nil }, r)

	calls := 0
	f.Callback = func(done *topic.Future) {
		calls++
		if done.State != topic.FutureFailure {
			t.Fatalf("state = %v, want FutureFailure", done.State)
		}
	}

	if n := SweepDeadlines(r, 500); n != 0 {
		t.Fatalf("SweepDeadlines before deadline swept %d, want 0", n)
	}
	if n := SweepDeadlines(r, 1001); n != 1 {
		t.Fatalf("SweepDeadlines after deadline swept %d, want 1", n)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if _, ok := tp.Futures.Find(1); ok {
		t.Fatal("timed-out future should be removed from topic index")
	}
}

func TestCancelRemovesWithoutCallback(t *testing.T) {
	tp := newTestTopic()
	r := NewRegistry()
	f := &topic.Future{TransferIDMasked: 1}
	PublishWithFuture(tp, f, 1000, nil, func(*topic.Topic, int64, []byte) error { return nil }, r)

	called := false
	f.Callback = func(*topic.Future) { called = true }
	Cancel(r, f)

	if called {
		t.Fatal("Cancel must not invoke the callback")
	}
	if _, ok := tp.Futures.Find(1); ok {
		t.Fatal("cancelled future should be removed from topic index")
	}
	if _, _, ok := r.byDeadline.Min(); ok {
		t.Fatal("cancelled future should be removed from deadline index")
	}
}
