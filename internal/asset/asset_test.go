package asset

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testEscrow = common.HexToAddress("0x00000000000000000000000000000000000e5c40")
	alice      = common.HexToAddress("0x0000000000000000000000000000000000000aa1")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000bb1")
	tokenAddr  = common.HexToAddress("0x0000000000000000000000000000000000000cc1")
)

func TestNative(t *testing.T) {
	t.Parallel()

	t.Run("pull and push move value through escrow", func(t *testing.T) {
		n := NewNative("ETH", testEscrow)
		if err := n.Mint(alice, big.NewInt(100)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := n.Pull(alice, big.NewInt(60)); err != nil {
			t.Fatalf("pull: %v", err)
		}
		if got := n.BalanceOf(testEscrow); got.Int64() != 60 {
			t.Fatalf("escrow = %s", got)
		}
		if err := n.Push(bob, big.NewInt(60)); err != nil {
			t.Fatalf("push: %v", err)
		}
		if got := n.BalanceOf(bob); got.Int64() != 60 {
			t.Fatalf("bob = %s", got)
		}
		if got := n.BalanceOf(alice); got.Int64() != 40 {
			t.Fatalf("alice = %s", got)
		}
	})

	t.Run("insufficient balance leaves both sides untouched", func(t *testing.T) {
		n := NewNative("ETH", testEscrow)
		if err := n.Mint(alice, big.NewInt(10)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := n.Pull(alice, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("expected ErrInsufficientBalance, got %v", err)
		}
		if got := n.BalanceOf(alice); got.Int64() != 10 {
			t.Fatalf("alice = %s", got)
		}
		if got := n.BalanceOf(testEscrow); got.Sign() != 0 {
			t.Fatalf("escrow = %s", got)
		}
	})

	t.Run("nil and negative amounts are invalid", func(t *testing.T) {
		n := NewNative("ETH", testEscrow)
		if err := n.Pull(alice, nil); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("nil: %v", err)
		}
		if err := n.Push(alice, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("negative: %v", err)
		}
	})
}

func TestToken(t *testing.T) {
	t.Parallel()

	newUSDm := func(t *testing.T) *Token {
		t.Helper()
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		if err := tok.Mint(alice, big.NewInt(1_000_000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		return tok
	}

	t.Run("pull requires allowance and consumes it", func(t *testing.T) {
		tok := newUSDm(t)
		if err := tok.Pull(alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
			t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
		}
		if err := tok.Approve(alice, big.NewInt(500_000)); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := tok.Pull(alice, big.NewInt(300_000)); err != nil {
			t.Fatalf("pull: %v", err)
		}
		if got := tok.Allowance(alice); got.Int64() != 200_000 {
			t.Fatalf("allowance = %s", got)
		}
		if got := tok.BalanceOf(testEscrow); got.Int64() != 300_000 {
			t.Fatalf("escrow = %s", got)
		}
	})

	t.Run("allowance checked before balance", func(t *testing.T) {
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		// No balance, no allowance: the allowance failure wins so callers
		// can tell what to fix first.
		if err := tok.Pull(alice, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
			t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
		}
	})

	t.Run("approve replaces earlier approvals", func(t *testing.T) {
		tok := newUSDm(t)
		if err := tok.Approve(alice, big.NewInt(100)); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := tok.Approve(alice, big.NewInt(7)); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if got := tok.Allowance(alice); got.Int64() != 7 {
			t.Fatalf("allowance = %s", got)
		}
	})
}

// recordingSink captures the callback and answers with a scripted error.
type recordingSink struct {
	calls int
	from  common.Address
	event uint64
	err   error
}

func (s *recordingSink) OnTokenReceived(_, from common.Address, _ *big.Int, eventID uint64) error {
	s.calls++
	s.from = from
	s.event = eventID
	return s.err
}

func TestTransferAndCall(t *testing.T) {
	t.Parallel()

	t.Run("delivers funds and the event id to the sink", func(t *testing.T) {
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		if err := tok.Mint(alice, big.NewInt(100)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		sink := &recordingSink{}
		tok.SetSink(sink)

		if err := tok.TransferAndCall(alice, big.NewInt(100), 7); err != nil {
			t.Fatalf("TransferAndCall: %v", err)
		}
		if sink.calls != 1 || sink.from != alice || sink.event != 7 {
			t.Fatalf("sink saw %+v", sink)
		}
		if got := tok.BalanceOf(testEscrow); got.Int64() != 100 {
			t.Fatalf("escrow = %s", got)
		}
	})

	t.Run("sink rejection undoes the transfer", func(t *testing.T) {
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		if err := tok.Mint(alice, big.NewInt(100)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		rejected := errors.New("not this event")
		tok.SetSink(&recordingSink{err: rejected})

		if err := tok.TransferAndCall(alice, big.NewInt(100), 7); !errors.Is(err, rejected) {
			t.Fatalf("expected sink error, got %v", err)
		}
		if got := tok.BalanceOf(alice); got.Int64() != 100 {
			t.Fatalf("alice not refunded: %s", got)
		}
		if got := tok.BalanceOf(testEscrow); got.Sign() != 0 {
			t.Fatalf("escrow kept %s", got)
		}
	})

	t.Run("no sink no callback flow", func(t *testing.T) {
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		if err := tok.Mint(alice, big.NewInt(100)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := tok.TransferAndCall(alice, big.NewInt(100), 7); !errors.Is(err, ErrUnknownAsset) {
			t.Fatalf("expected ErrUnknownAsset, got %v", err)
		}
	})

	t.Run("failed undo surfaces alongside the rejection", func(t *testing.T) {
		tok := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
		if err := tok.Mint(alice, big.NewInt(100)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		// The sink drains escrow before rejecting, so the rollback has
		// nothing left to return to the payer.
		rejected := errors.New("not this event")
		tok.SetSink(sinkFunc(func(_, _ common.Address, amount *big.Int, _ uint64) error {
			if err := tok.Push(bob, amount); err != nil {
				t.Fatalf("drain escrow: %v", err)
			}
			return rejected
		}))

		err := tok.TransferAndCall(alice, big.NewInt(100), 7)
		if !errors.Is(err, rejected) {
			t.Fatalf("sink rejection lost: %v", err)
		}
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("undo failure not reported: %v", err)
		}
		if got := tok.BalanceOf(alice); got.Sign() != 0 {
			t.Fatalf("alice = %s after drained escrow", got)
		}
		if got := tok.BalanceOf(bob); got.Int64() != 100 {
			t.Fatalf("bob = %s", got)
		}
	})
}

// sinkFunc adapts a function to the TransferSink interface.
type sinkFunc func(token, from common.Address, amount *big.Int, eventID uint64) error

func (f sinkFunc) OnTokenReceived(token, from common.Address, amount *big.Int, eventID uint64) error {
	return f(token, from, amount, eventID)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	native := NewNative("ETH", testEscrow)
	usdm := NewToken(tokenAddr, "Mock USD", "USDm", 6, testEscrow)
	reg := NewRegistry(native, usdm)

	if !reg.Supported(NativeAddress) || !reg.Supported(tokenAddr) {
		t.Fatal("registered assets not supported")
	}
	if reg.Supported(alice) {
		t.Fatal("arbitrary address reported supported")
	}
	if _, err := reg.Get(alice); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}

	got := reg.List()
	if len(got) != 2 || got[0].Address() != NativeAddress || got[1].Address() != tokenAddr {
		t.Fatalf("List out of registration order: %v", got)
	}

	// Duplicate registration keeps the first entry.
	other := NewToken(tokenAddr, "Other", "OTH", 18, testEscrow)
	reg2 := NewRegistry(usdm, other)
	a, err := reg2.Get(tokenAddr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.Symbol() != "USDm" {
		t.Fatalf("duplicate replaced first entry: %s", a.Symbol())
	}
}
