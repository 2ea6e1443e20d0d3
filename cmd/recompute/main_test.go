package main

import (
	"context"
	"errors"
	"testing"
)

// fakeRecomputer records the ids it was asked to refresh.
type fakeRecomputer struct {
	ids  [][]int64
	fail bool
}

func (f *fakeRecomputer) RecomputeStatistics(ctx context.Context, ids []int64) error {
	f.ids = append(f.ids, ids)
	if f.fail {
		return errors.New("store down")
	}
	return nil
}

func TestProcessMessage_IDs(t *testing.T) {
	f := &fakeRecomputer{}
	if err := processMessage(context.Background(), []byte(`{"reservation_ids":[1,2,3]}`), f); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(f.ids) != 1 || len(f.ids[0]) != 3 || f.ids[0][0] != 1 {
		t.Fatalf("ids not forwarded: %v", f.ids)
	}
}

func TestProcessMessage_EmptyMeansAll(t *testing.T) {
	f := &fakeRecomputer{}
	if err := processMessage(context.Background(), []byte(`{}`), f); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(f.ids) != 1 || f.ids[0] != nil {
		t.Fatalf("expected nil id list, got %v", f.ids)
	}
}

func TestProcessMessage_Invalid(t *testing.T) {
	f := &fakeRecomputer{}
	err := processMessage(context.Background(), []byte(`not json`), f)
	if !errors.Is(err, errInvalidMessage) {
		t.Fatalf("expected errInvalidMessage, got %v", err)
	}
	if len(f.ids) != 0 {
		t.Fatal("recomputer must not run on invalid input")
	}
}

func TestProcessMessage_RecomputerFailure(t *testing.T) {
	f := &fakeRecomputer{fail: true}
	err := processMessage(context.Background(), []byte(`{"reservation_ids":[7]}`), f)
	if err == nil || errors.Is(err, errInvalidMessage) {
		t.Fatalf("expected recompute failure, got %v", err)
	}
}
