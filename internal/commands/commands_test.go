package commands

import (
	"context"
	"testing"

	"github.com/LeventeLantos/signal-relay/internal/model"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

func TestRelayOnly_AdminBecomesBroadcast(t *testing.T) {
	t.Parallel()

	d := Dispatchable{
		Channel: &model.Channel{PhoneNumber: "+15550001111"},
		Sender:  model.Sender{PhoneNumber: "+15551110000", Type: model.MemberTypeAdmin},
		Message: signald.Request{MessageBody: "hello everyone"},
	}

	res, err := RelayOnly{}.ProcessCommand(context.Background(), d)
	if err != nil {
		t.Fatalf("ProcessCommand() error: %v", err)
	}
	if res.Status != StatusSuccess || res.Command != Broadcast {
		t.Fatalf("expected successful broadcast, got %+v", res)
	}
	if res.Message != "hello everyone" {
		t.Fatalf("expected the body carried through, got %q", res.Message)
	}
}

func TestRelayOnly_OthersAreHotlineCandidates(t *testing.T) {
	t.Parallel()

	for _, mt := range []model.MemberType{model.MemberTypeSubscriber, model.MemberTypeNone} {
		d := Dispatchable{
			Channel: &model.Channel{PhoneNumber: "+15550001111"},
			Sender:  model.Sender{PhoneNumber: "+15552220000", Type: mt},
			Message: signald.Request{MessageBody: "help"},
		}

		res, err := RelayOnly{}.ProcessCommand(context.Background(), d)
		if err != nil {
			t.Fatalf("ProcessCommand() error: %v", err)
		}
		if res.Status != StatusNoop {
			t.Fatalf("expected NOOP for %s, got %+v", mt, res)
		}
	}
}
