package ledger

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/clock"
)

var (
	escrowAddr = common.HexToAddress("0x00000000000000000000000000000000000e5c40")
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	buyerAddr  = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	buyer2Addr = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	usdmAddr   = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

// units returns n * 10^exp.
func units(n int64, exp uint) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
}

// captureEmitter records emitted domain-event kinds in order.
type captureEmitter struct {
	mu    sync.Mutex
	kinds []string
}

func (c *captureEmitter) record(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func (c *captureEmitter) EventCreated(uint64, common.Address, string) { c.record("created") }
func (c *captureEmitter) TicketPurchased(uint64, common.Address, *big.Int, common.Address) {
	c.record("purchased")
}
func (c *captureEmitter) RefundIssued(uint64, common.Address, *big.Int) { c.record("refunded") }
func (c *captureEmitter) FundsReleased(uint64, *big.Int)                { c.record("released") }
func (c *captureEmitter) EventCanceled(uint64)                          { c.record("canceled") }

func (c *captureEmitter) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.kinds))
	copy(out, c.kinds)
	return out
}

type fixture struct {
	ledger *Ledger
	native *asset.Native
	usdm   *asset.Token
	clk    *clock.Fixed
	emit   *captureEmitter
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	native := asset.NewNative("ETH", escrowAddr)
	usdm := asset.NewToken(usdmAddr, "Mock USD", "USDm", 6, escrowAddr)
	emit := &captureEmitter{}
	l := New(asset.NewRegistry(native, usdm), clk, WithEmitter(emit))
	usdm.SetSink(l)
	return &fixture{ledger: l, native: native, usdm: usdm, clk: clk, emit: emit, now: now}
}

// validInput returns a native-asset creation input starting in 24h and
// running for 2h, priced at 1 ETH.
func (f *fixture) validInput() CreateEventInput {
	return CreateEventInput{
		Owner:         ownerAddr,
		Name:          "Warehouse Rave",
		ImageRef:      "ipfs://Qm(image)",
		Details:       "Doors open an hour early.",
		Location:      "Pier 12",
		StartTime:     f.now.Add(24 * time.Hour),
		EndTime:       f.now.Add(26 * time.Hour),
		StartClock:    "20:00",
		EndClock:      "22:00",
		TicketPrice:   units(1, 18),
		AssetDecimals: 18,
		PaymentAsset:  asset.NativeAddress,
	}
}

// usdmInput returns a 6-decimal token event priced at 25 USDm, expressed in
// 18-decimal terms as creation requires.
func (f *fixture) usdmInput() CreateEventInput {
	in := f.validInput()
	in.TicketPrice = units(25, 18)
	in.AssetDecimals = 6
	in.PaymentAsset = usdmAddr
	return in
}

func (f *fixture) mustCreate(t *testing.T, in CreateEventInput) uint64 {
	t.Helper()
	id, err := f.ledger.CreateEvent(in)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	return id
}

func (f *fixture) fundNative(t *testing.T, addr common.Address, amount *big.Int) {
	t.Helper()
	if err := f.native.Mint(addr, amount); err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("assigns sequential ids and echoes fields", func(t *testing.T) {
		f := newFixture(t)
		in := f.validInput()
		first := f.mustCreate(t, in)
		second := f.mustCreate(t, in)
		if first != 0 || second != 1 {
			t.Fatalf("expected ids 0 and 1, got %d and %d", first, second)
		}
		ev, err := f.ledger.GetEvent(first)
		if err != nil {
			t.Fatalf("GetEvent: %v", err)
		}
		if ev.Name != in.Name || ev.Owner != in.Owner || ev.Location != in.Location {
			t.Fatalf("snapshot does not echo input: %+v", ev)
		}
		if !ev.Active || ev.Canceled || ev.FundsReleased {
			t.Fatalf("fresh event has wrong flags: %+v", ev)
		}
		if ev.FundsHeld.Sign() != 0 {
			t.Fatalf("fresh event holds funds: %s", ev.FundsHeld)
		}
		if ev.Price.Cmp(units(1, 18)) != 0 {
			t.Fatalf("native price changed under normalization: %s", ev.Price)
		}
	})

	t.Run("normalizes token price to asset decimals", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		ev, _ := f.ledger.GetEvent(id)
		if ev.Price.Cmp(units(25, 6)) != 0 {
			t.Fatalf("expected 25e6 stored, got %s", ev.Price)
		}
	})

	t.Run("rejects invalid inputs without touching state", func(t *testing.T) {
		f := newFixture(t)
		longName := make([]byte, MaxNameLength+1)
		for i := range longName {
			longName[i] = 'x'
		}
		cases := []struct {
			name   string
			mutate func(*CreateEventInput)
			want   error
		}{
			{"empty name", func(in *CreateEventInput) { in.Name = "" }, ErrInvalidName},
			{"name too long", func(in *CreateEventInput) { in.Name = string(longName) }, ErrInvalidName},
			{"start in the past", func(in *CreateEventInput) { in.StartTime = f.now.Add(-time.Minute) }, ErrStartNotFuture},
			{"start exactly now", func(in *CreateEventInput) { in.StartTime = f.now }, ErrStartNotFuture},
			{"too short", func(in *CreateEventInput) { in.EndTime = in.StartTime.Add(30 * time.Minute) }, ErrDurationTooShort},
			{"unknown asset", func(in *CreateEventInput) { in.PaymentAsset = common.HexToAddress("0xdead") }, ErrUnsupportedAsset},
			{"wrong decimals", func(in *CreateEventInput) { in.AssetDecimals = 8 }, ErrInvalidDecimals},
			{"nil price", func(in *CreateEventInput) { in.TicketPrice = nil }, ErrInvalidPrice},
			{"negative price", func(in *CreateEventInput) { in.TicketPrice = big.NewInt(-5) }, ErrInvalidPrice},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := f.validInput()
				tc.mutate(&in)
				if _, err := f.ledger.CreateEvent(in); !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			})
		}
		if f.ledger.EventCount() != 0 {
			t.Fatalf("failed creations left %d events behind", f.ledger.EventCount())
		}
	})

	t.Run("rejects price not divisible into token units", func(t *testing.T) {
		f := newFixture(t)
		in := f.usdmInput()
		// 1 extra wei cannot be represented in 6 decimals.
		in.TicketPrice = new(big.Int).Add(units(25, 18), big.NewInt(1))
		if _, err := f.ledger.CreateEvent(in); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("expected ErrInvalidPrice, got %v", err)
		}
	})

	t.Run("custom policy without buffer falls back to default", func(t *testing.T) {
		f := newFixture(t)
		in := f.validInput()
		in.Policy = RefundCustom
		id := f.mustCreate(t, in)
		ev, _ := f.ledger.GetEvent(id)
		if ev.RefundBuffer != DefaultRefundBuffer {
			t.Fatalf("expected default buffer, got %v", ev.RefundBuffer)
		}
	})
}

func TestBuyTicket(t *testing.T) {
	t.Parallel()

	t.Run("native purchase escrows the exact price", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(2, 18))

		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("BuyTicket: %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Cmp(units(1, 18)) != 0 {
			t.Fatalf("expected 1e18 held, got %s", ev.FundsHeld)
		}
		if got := f.native.BalanceOf(escrowAddr); got.Cmp(units(1, 18)) != 0 {
			t.Fatalf("escrow balance %s", got)
		}
		if got := f.native.BalanceOf(buyerAddr); got.Cmp(units(1, 18)) != 0 {
			t.Fatalf("buyer balance %s", got)
		}
		if has, _ := f.ledger.HasTicket(id, buyerAddr); !has {
			t.Fatal("ticket not recorded")
		}
	})

	t.Run("native purchase rejects wrong attached value", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(2, 18))

		for _, attached := range []*big.Int{nil, big.NewInt(1), units(2, 18)} {
			if err := f.ledger.BuyTicket(id, buyerAddr, attached); !errors.Is(err, ErrIncorrectAmount) {
				t.Fatalf("attached %v: expected ErrIncorrectAmount, got %v", attached, err)
			}
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Sign() != 0 || len(ev.Attendees) != 0 {
			t.Fatalf("rejected purchases mutated state: %+v", ev)
		}
	})

	t.Run("second purchase by same buyer fails", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(5, 18))

		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("first buy: %v", err)
		}
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); !errors.Is(err, ErrAlreadyPurchased) {
			t.Fatalf("expected ErrAlreadyPurchased, got %v", err)
		}
	})

	t.Run("capacity is a hard cap", func(t *testing.T) {
		f := newFixture(t)
		in := f.validInput()
		in.Capacity = 1
		id := f.mustCreate(t, in)
		f.fundNative(t, buyerAddr, units(1, 18))
		f.fundNative(t, buyer2Addr, units(1, 18))

		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("first buy: %v", err)
		}
		if err := f.ledger.BuyTicket(id, buyer2Addr, units(1, 18)); !errors.Is(err, ErrEventFull) {
			t.Fatalf("expected ErrEventFull, got %v", err)
		}
	})

	t.Run("expired and canceled events reject purchases", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(1, 18))

		f.clk.Advance(27 * time.Hour)
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); !errors.Is(err, ErrEventExpired) {
			t.Fatalf("expected ErrEventExpired, got %v", err)
		}

		f2 := newFixture(t)
		id2 := f2.mustCreate(t, f2.validInput())
		if err := f2.ledger.CancelEvent(id2, ownerAddr); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := f2.ledger.BuyTicket(id2, buyerAddr, units(1, 18)); !errors.Is(err, ErrEventCanceled) {
			t.Fatalf("expected ErrEventCanceled, got %v", err)
		}
	})

	t.Run("unknown event id", func(t *testing.T) {
		f := newFixture(t)
		if err := f.ledger.BuyTicket(42, buyerAddr, units(1, 18)); !errors.Is(err, ErrEventNotFound) {
			t.Fatalf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("token purchase pulls via allowance", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		if err := f.usdm.Mint(buyerAddr, units(100, 6)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := f.usdm.Approve(buyerAddr, units(25, 6)); err != nil {
			t.Fatalf("approve: %v", err)
		}

		if err := f.ledger.BuyTicket(id, buyerAddr, nil); err != nil {
			t.Fatalf("BuyTicket: %v", err)
		}
		if got := f.usdm.BalanceOf(escrowAddr); got.Cmp(units(25, 6)) != 0 {
			t.Fatalf("escrow token balance %s", got)
		}
		if got := f.usdm.Allowance(buyerAddr); got.Sign() != 0 {
			t.Fatalf("allowance not consumed: %s", got)
		}
	})

	t.Run("token purchase rejects attached value", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		if err := f.ledger.BuyTicket(id, buyerAddr, units(25, 6)); !errors.Is(err, ErrIncorrectAmount) {
			t.Fatalf("expected ErrIncorrectAmount, got %v", err)
		}
	})

	t.Run("failed pull rolls the purchase back", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		// Balance but no allowance: the pull fails after the ticket was
		// provisionally recorded.
		if err := f.usdm.Mint(buyerAddr, units(100, 6)); err != nil {
			t.Fatalf("mint: %v", err)
		}

		err := f.ledger.BuyTicket(id, buyerAddr, nil)
		if !errors.Is(err, asset.ErrInsufficientAllowance) {
			t.Fatalf("expected allowance failure, got %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Sign() != 0 || len(ev.Attendees) != 0 {
			t.Fatalf("failed purchase left state behind: %+v", ev)
		}
		if has, _ := f.ledger.HasTicket(id, buyerAddr); has {
			t.Fatal("failed purchase left a ticket")
		}
	})

	t.Run("accumulates N purchases at 6 decimals", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		buyers := []common.Address{
			common.HexToAddress("0x0000000000000000000000000000000000000d01"),
			common.HexToAddress("0x0000000000000000000000000000000000000d02"),
			common.HexToAddress("0x0000000000000000000000000000000000000d03"),
		}
		for _, b := range buyers {
			if err := f.usdm.Mint(b, units(25, 6)); err != nil {
				t.Fatalf("mint: %v", err)
			}
			if err := f.usdm.Approve(b, units(25, 6)); err != nil {
				t.Fatalf("approve: %v", err)
			}
			if err := f.ledger.BuyTicket(id, b, nil); err != nil {
				t.Fatalf("buy for %s: %v", b.Hex(), err)
			}
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Cmp(units(75, 6)) != 0 {
			t.Fatalf("expected 75e6 held, got %s", ev.FundsHeld)
		}
		if len(ev.Attendees) != 3 {
			t.Fatalf("expected 3 attendees, got %d", len(ev.Attendees))
		}
	})
}

func TestTransferAndCallPurchase(t *testing.T) {
	t.Parallel()

	t.Run("records the ticket without a pull", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		if err := f.usdm.Mint(buyerAddr, units(25, 6)); err != nil {
			t.Fatalf("mint: %v", err)
		}

		if err := f.usdm.TransferAndCall(buyerAddr, units(25, 6), id); err != nil {
			t.Fatalf("TransferAndCall: %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Cmp(units(25, 6)) != 0 {
			t.Fatalf("expected 25e6 held, got %s", ev.FundsHeld)
		}
		if has, _ := f.ledger.HasTicket(id, buyerAddr); !has {
			t.Fatal("ticket not recorded")
		}
	})

	t.Run("wrong amount undoes the transfer", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		if err := f.usdm.Mint(buyerAddr, units(30, 6)); err != nil {
			t.Fatalf("mint: %v", err)
		}

		err := f.usdm.TransferAndCall(buyerAddr, units(30, 6), id)
		if !errors.Is(err, ErrIncorrectAmount) {
			t.Fatalf("expected ErrIncorrectAmount, got %v", err)
		}
		if got := f.usdm.BalanceOf(buyerAddr); got.Cmp(units(30, 6)) != 0 {
			t.Fatalf("transfer not undone, buyer balance %s", got)
		}
		if got := f.usdm.BalanceOf(escrowAddr); got.Sign() != 0 {
			t.Fatalf("escrow kept funds: %s", got)
		}
	})

	t.Run("token mismatching the event asset is rejected", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput()) // native-asset event
		if err := f.usdm.Mint(buyerAddr, units(25, 6)); err != nil {
			t.Fatalf("mint: %v", err)
		}
		if err := f.usdm.TransferAndCall(buyerAddr, units(25, 6), id); !errors.Is(err, ErrWrongAsset) {
			t.Fatalf("expected ErrWrongAsset, got %v", err)
		}
	})

	t.Run("unregistered token cannot use the hook", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.usdmInput())
		stranger := common.HexToAddress("0x0000000000000000000000000000000000000c99")
		err := f.ledger.OnTokenReceived(stranger, buyerAddr, units(25, 6), id)
		if !errors.Is(err, ErrUnsupportedAsset) {
			t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
		}
	})
}

func TestRequestRefund(t *testing.T) {
	t.Parallel()

	buy := func(t *testing.T, f *fixture, id uint64) {
		t.Helper()
		f.fundNative(t, buyerAddr, units(1, 18))
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("buy: %v", err)
		}
	}

	t.Run("refund returns payment and clears the ticket", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		buy(t, f, id)

		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("RequestRefund: %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsHeld.Sign() != 0 || len(ev.Attendees) != 0 {
			t.Fatalf("refund left state behind: %+v", ev)
		}
		if got := f.native.BalanceOf(buyerAddr); got.Cmp(units(1, 18)) != 0 {
			t.Fatalf("buyer not repaid: %s", got)
		}
	})

	t.Run("refunded buyer may purchase again", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		buy(t, f, id)
		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("refund: %v", err)
		}
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("rebuy after refund: %v", err)
		}
	})

	t.Run("no ticket no refund", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		if err := f.ledger.RequestRefund(id, buyerAddr); !errors.Is(err, ErrNoTicket) {
			t.Fatalf("expected ErrNoTicket, got %v", err)
		}
	})

	t.Run("window boundaries under the standard policy", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput()) // start +24h, cutoff +19h
		buy(t, f, id)

		// One second before the cutoff the refund still goes through.
		f.clk.Set(f.now.Add(19*time.Hour - time.Second))
		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("refund just inside window: %v", err)
		}

		buy(t, f, id)
		// At the cutoff instant the window is closed.
		f.clk.Set(f.now.Add(19 * time.Hour))
		if err := f.ledger.RequestRefund(id, buyerAddr); !errors.Is(err, ErrRefundWindowClosed) {
			t.Fatalf("expected ErrRefundWindowClosed, got %v", err)
		}
	})

	t.Run("flexible policy refunds until start", func(t *testing.T) {
		f := newFixture(t)
		in := f.validInput()
		in.Policy = RefundFlexible
		id := f.mustCreate(t, in)
		buy(t, f, id)

		f.clk.Set(f.now.Add(24*time.Hour - time.Second))
		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("flexible refund before start: %v", err)
		}
	})

	t.Run("strict policy refuses refunds unless canceled", func(t *testing.T) {
		f := newFixture(t)
		in := f.validInput()
		in.Policy = RefundStrict
		id := f.mustCreate(t, in)
		buy(t, f, id)

		if err := f.ledger.RequestRefund(id, buyerAddr); !errors.Is(err, ErrRefundWindowClosed) {
			t.Fatalf("expected ErrRefundWindowClosed, got %v", err)
		}
		if err := f.ledger.CancelEvent(id, ownerAddr); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("refund after cancel: %v", err)
		}
	})

	t.Run("cancellation reopens a closed window", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		buy(t, f, id)
		f.clk.Set(f.now.Add(20 * time.Hour)) // past the cutoff

		if err := f.ledger.RequestRefund(id, buyerAddr); !errors.Is(err, ErrRefundWindowClosed) {
			t.Fatalf("expected ErrRefundWindowClosed, got %v", err)
		}
		if err := f.ledger.CancelEvent(id, ownerAddr); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
			t.Fatalf("refund after cancel: %v", err)
		}
	})

	t.Run("no refunds after release", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		buy(t, f, id)
		f.clk.Set(f.now.Add(27 * time.Hour))
		if err := f.ledger.ReleaseFunds(id, ownerAddr); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := f.ledger.RequestRefund(id, buyerAddr); !errors.Is(err, ErrAlreadyReleased) {
			t.Fatalf("expected ErrAlreadyReleased, got %v", err)
		}
	})
}

func TestReleaseFunds(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*fixture, uint64) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(1, 18))
		f.fundNative(t, buyer2Addr, units(1, 18))
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("buy: %v", err)
		}
		if err := f.ledger.BuyTicket(id, buyer2Addr, units(1, 18)); err != nil {
			t.Fatalf("buy: %v", err)
		}
		return f, id
	}

	t.Run("pays all held funds to the owner after the end", func(t *testing.T) {
		f, id := setup(t)
		f.clk.Set(f.now.Add(26*time.Hour + time.Minute))

		if err := f.ledger.ReleaseFunds(id, ownerAddr); err != nil {
			t.Fatalf("ReleaseFunds: %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if !ev.FundsReleased || ev.FundsHeld.Sign() != 0 {
			t.Fatalf("release did not settle the record: %+v", ev)
		}
		if got := f.native.BalanceOf(ownerAddr); got.Cmp(units(2, 18)) != 0 {
			t.Fatalf("owner got %s", got)
		}
	})

	t.Run("rejected before the event ends", func(t *testing.T) {
		f, id := setup(t)
		f.clk.Set(f.now.Add(26 * time.Hour)) // exactly at end, not yet after
		if err := f.ledger.ReleaseFunds(id, ownerAddr); !errors.Is(err, ErrEventNotEnded) {
			t.Fatalf("expected ErrEventNotEnded, got %v", err)
		}
	})

	t.Run("only the owner may release", func(t *testing.T) {
		f, id := setup(t)
		f.clk.Set(f.now.Add(27 * time.Hour))
		if err := f.ledger.ReleaseFunds(id, buyerAddr); !errors.Is(err, ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})

	t.Run("second release fails", func(t *testing.T) {
		f, id := setup(t)
		f.clk.Set(f.now.Add(27 * time.Hour))
		if err := f.ledger.ReleaseFunds(id, ownerAddr); err != nil {
			t.Fatalf("first release: %v", err)
		}
		if err := f.ledger.ReleaseFunds(id, ownerAddr); !errors.Is(err, ErrAlreadyReleased) {
			t.Fatalf("expected ErrAlreadyReleased, got %v", err)
		}
	})

	t.Run("empty escrow has nothing to release", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.clk.Set(f.now.Add(27 * time.Hour))
		if err := f.ledger.ReleaseFunds(id, ownerAddr); !errors.Is(err, ErrNothingToRelease) {
			t.Fatalf("expected ErrNothingToRelease, got %v", err)
		}
		ev, _ := f.ledger.GetEvent(id)
		if ev.FundsReleased {
			t.Fatal("zero release must not mark the event settled")
		}
	})
}

func TestArchiveEvent(t *testing.T) {
	t.Parallel()

	t.Run("settled event disappears from active listings", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		if err := f.ledger.ArchiveEvent(id, ownerAddr); err != nil {
			t.Fatalf("ArchiveEvent: %v", err)
		}
		if got := len(f.ledger.ListActive()); got != 0 {
			t.Fatalf("archived event still listed, %d active", got)
		}
		if _, err := f.ledger.GetEvent(id); err != nil {
			t.Fatalf("archived event unreadable: %v", err)
		}
		if err := f.ledger.ArchiveEvent(id, ownerAddr); !errors.Is(err, ErrAlreadyArchived) {
			t.Fatalf("expected ErrAlreadyArchived, got %v", err)
		}
	})

	t.Run("outstanding escrow blocks archival", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		f.fundNative(t, buyerAddr, units(1, 18))
		if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
			t.Fatalf("buy: %v", err)
		}
		if err := f.ledger.ArchiveEvent(id, ownerAddr); !errors.Is(err, ErrFundsOutstanding) {
			t.Fatalf("expected ErrFundsOutstanding, got %v", err)
		}

		f.clk.Set(f.now.Add(27 * time.Hour))
		if err := f.ledger.ReleaseFunds(id, ownerAddr); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := f.ledger.ArchiveEvent(id, ownerAddr); err != nil {
			t.Fatalf("archive after release: %v", err)
		}
	})

	t.Run("owner only", func(t *testing.T) {
		f := newFixture(t)
		id := f.mustCreate(t, f.validInput())
		if err := f.ledger.ArchiveEvent(id, buyerAddr); !errors.Is(err, ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
	})
}

func TestCancelEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.mustCreate(t, f.validInput())
	f.fundNative(t, buyerAddr, units(1, 18))
	if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if err := f.ledger.CancelEvent(id, buyerAddr); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.ledger.CancelEvent(id, ownerAddr); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	ev, _ := f.ledger.GetEvent(id)
	if !ev.Canceled || ev.Active {
		t.Fatalf("cancel flags wrong: %+v", ev)
	}
	// Escrow stays untouched until attendees claim their refunds.
	if ev.FundsHeld.Cmp(units(1, 18)) != 0 {
		t.Fatalf("cancel moved funds: %s", ev.FundsHeld)
	}
	if err := f.ledger.CancelEvent(id, ownerAddr); !errors.Is(err, ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
}

func TestReads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first := f.mustCreate(t, f.validInput())
	in := f.validInput()
	in.Owner = buyer2Addr
	in.Name = "Harbor Lights"
	second := f.mustCreate(t, in)

	if got := f.ledger.EventCount(); got != 2 {
		t.Fatalf("EventCount = %d", got)
	}
	if got := len(f.ledger.ListActive()); got != 2 {
		t.Fatalf("ListActive = %d", got)
	}
	if err := f.ledger.CancelEvent(first, ownerAddr); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.ledger.ListActive(); len(got) != 1 || got[0].ID != second {
		t.Fatalf("ListActive after cancel = %+v", got)
	}

	mine := f.ledger.ListByOwner(buyer2Addr)
	if len(mine) != 1 || mine[0].Name != "Harbor Lights" {
		t.Fatalf("ListByOwner = %+v", mine)
	}

	f.fundNative(t, buyerAddr, units(1, 18))
	if err := f.ledger.BuyTicket(second, buyerAddr, units(1, 18)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	tickets := f.ledger.ListTickets(buyerAddr)
	if len(tickets) != 1 || tickets[0].ID != second {
		t.Fatalf("ListTickets = %+v", tickets)
	}
	if _, err := f.ledger.HasTicket(99, buyerAddr); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestEmittedEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := f.mustCreate(t, f.validInput())
	f.fundNative(t, buyerAddr, units(2, 18))
	if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if err := f.ledger.RequestRefund(id, buyerAddr); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := f.ledger.BuyTicket(id, buyerAddr, units(1, 18)); err != nil {
		t.Fatalf("rebuy: %v", err)
	}
	f.clk.Set(f.now.Add(27 * time.Hour))
	if err := f.ledger.ReleaseFunds(id, ownerAddr); err != nil {
		t.Fatalf("release: %v", err)
	}

	want := []string{"created", "purchased", "refunded", "purchased", "released"}
	got := f.emit.seen()
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

// readbackEmitter performs a ledger read from inside the purchase
// callback, as a journal or metrics sink legitimately might.
type readbackEmitter struct {
	NopEmitter
	ledger *Ledger
	reads  int
}

func (r *readbackEmitter) TicketPurchased(id uint64, _ common.Address, _ *big.Int, _ common.Address) {
	if _, err := r.ledger.GetEvent(id); err == nil {
		r.reads++
	}
}

func TestEmitterCanReadLedgerBack(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	native := asset.NewNative("ETH", escrowAddr)
	usdm := asset.NewToken(usdmAddr, "Mock USD", "USDm", 6, escrowAddr)
	emit := &readbackEmitter{}
	l := New(asset.NewRegistry(native, usdm), clk, WithEmitter(emit))
	emit.ledger = l
	usdm.SetSink(l)

	f := &fixture{ledger: l, native: native, usdm: usdm, clk: clk, now: now}
	nativeID := f.mustCreate(t, f.validInput())
	tokenID := f.mustCreate(t, f.usdmInput())

	f.fundNative(t, buyerAddr, units(1, 18))
	if err := l.BuyTicket(nativeID, buyerAddr, units(1, 18)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if err := usdm.Mint(buyerAddr, units(25, 6)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := usdm.TransferAndCall(buyerAddr, units(25, 6), tokenID); err != nil {
		t.Fatalf("transfer and call: %v", err)
	}

	if emit.reads != 2 {
		t.Fatalf("emitter read back %d events, want 2", emit.reads)
	}
}
