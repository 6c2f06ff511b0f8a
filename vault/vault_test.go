package vault

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"vault/config"
	"vault/db"
	"vault/logs"
	"vault/types"
	"vault/vm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logs.SetOutput(io.Discard)
}

const sol = 1_000_000_000

var programID = types.MustParseAddress(config.DefaultProgramID)

type harness struct {
	x     *vm.Executor
	ctl   *Controller
	nonce atomic.Uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := db.NewInMemoryManager(nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	ctl := NewController(types.NewDeriver(programID, 64))
	reg := vm.NewHandlerRegistry()
	require.NoError(t, Register(reg, ctl))

	x, err := vm.NewExecutor(store, reg, config.DefaultConfig().Runtime, nil)
	require.NoError(t, err)
	return &harness{x: x, ctl: ctl}
}

func (h *harness) newOwner(t *testing.T, lamports uint64) *types.Keypair {
	t.Helper()
	kp, err := types.GenerateKeypair()
	require.NoError(t, err)
	if lamports > 0 {
		require.True(t, h.x.Airdrop(kp.Address(), lamports).Succeeded())
	}
	return kp
}

func (h *harness) build(t *testing.T, kp *types.Keypair, kind string, owner types.Address, amount uint64) *types.Instruction {
	t.Helper()
	ix := &types.Instruction{
		Program: programID,
		Kind:    kind,
		Owner:   owner,
		Amount:  amount,
		Nonce:   h.nonce.Add(1),
	}
	require.NoError(t, ix.Sign(kp))
	return ix
}

func (h *harness) submit(t *testing.T, kp *types.Keypair, kind string, amount uint64) *vm.Receipt {
	t.Helper()
	return h.x.Execute(h.build(t, kp, kind, types.Address{}, amount))
}

func (h *harness) must(t *testing.T, kp *types.Keypair, kind string, amount uint64) {
	t.Helper()
	rc := h.submit(t, kp, kind, amount)
	require.True(t, rc.Succeeded(), "%s: %s", kind, rc.Error)
}

func (h *harness) info(t *testing.T, owner types.Address) *Info {
	t.Helper()
	info, err := h.ctl.Inspect(h.x, owner)
	require.NoError(t, err)
	return info
}

func (h *harness) lamports(t *testing.T, addr types.Address) uint64 {
	t.Helper()
	acc, err := h.x.Account(addr)
	require.NoError(t, err)
	if acc == nil {
		return 0
	}
	return acc.Lamports
}

func assertCode(t *testing.T, rc *vm.Receipt, code ErrorCode) {
	t.Helper()
	require.False(t, rc.Succeeded())
	assert.Equal(t, code.Code(), rc.ErrorCode, rc.Error)
	assert.Equal(t, code.Message(), rc.Message)
	assert.Equal(t, code.Name(), rc.ErrorKind)
}

func assertInSync(t *testing.T, info *Info) {
	t.Helper()
	assert.Equal(t, info.Balance, info.EscrowHeld, "balance must equal escrow held value")
}

// ========== 端到端 ==========

func TestRoundTrip(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, 10*sol)

	h.must(t, kp, KindInitialize, 0)
	info := h.info(t, kp.Address())
	require.True(t, info.Initialized)
	assert.Zero(t, info.Balance)

	h.must(t, kp, KindDeposit, 100)
	h.must(t, kp, KindWithdraw, 40)

	info = h.info(t, kp.Address())
	assert.Equal(t, uint64(60), info.Balance)
	assert.Equal(t, uint64(60), info.EscrowHeld)
	assert.Equal(t, kp.Address(), info.Owner)

	rent, _ := vm.DefaultRent().MinimumBalance(Space)
	assert.Equal(t, rent, info.StateLamports)
	assert.Equal(t, 10*sol-rent-60, h.lamports(t, kp.Address()))
}

func TestBalanceTracksEscrowThroughSequence(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, 10*sol)
	h.must(t, kp, KindInitialize, 0)

	steps := []struct {
		kind   string
		amount uint64
	}{
		{KindDeposit, 500}, {KindWithdraw, 120}, {KindDeposit, 1}, {KindWithdraw, 381},
		{KindWithdraw, 1}, {KindDeposit, 2 * sol}, {KindWithdraw, sol}, {KindWithdraw, 5 * sol},
	}
	for _, s := range steps {
		h.submit(t, kp, s.kind, s.amount)
		assertInSync(t, h.info(t, kp.Address()))
	}
	assert.Equal(t, uint64(sol), h.info(t, kp.Address()).Balance)
}

func TestZeroAmountAlwaysInvalid(t *testing.T) {
	h := newHarness(t)
	alice := h.newOwner(t, sol)
	stranger := h.newOwner(t, sol)

	// 未初始化
	assertCode(t, h.submit(t, alice, KindDeposit, 0), InvalidAmount)
	assertCode(t, h.submit(t, alice, KindWithdraw, 0), InvalidAmount)

	h.must(t, alice, KindInitialize, 0)
	h.must(t, alice, KindDeposit, 10)
	assertCode(t, h.submit(t, alice, KindDeposit, 0), InvalidAmount)
	assertCode(t, h.submit(t, alice, KindWithdraw, 0), InvalidAmount)

	// 非 owner 也是 InvalidAmount
	assertCode(t, h.x.Execute(h.build(t, stranger, KindWithdraw, alice.Address(), 0)), InvalidAmount)

	assert.Equal(t, uint64(10), h.info(t, alice.Address()).Balance)
}

func TestWithdrawMoreThanBalance(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	h.must(t, kp, KindInitialize, 0)
	h.must(t, kp, KindDeposit, 50)
	before := h.lamports(t, kp.Address())

	assertCode(t, h.submit(t, kp, KindWithdraw, 51), InsufficientBalance)

	// 托管账户里有账外余额时，仍以逻辑余额为准
	info := h.info(t, kp.Address())
	require.True(t, h.x.Airdrop(info.Escrow, 1000).Succeeded())
	assertCode(t, h.submit(t, kp, KindWithdraw, 51), InsufficientBalance)

	info = h.info(t, kp.Address())
	assert.Equal(t, uint64(50), info.Balance)
	assert.Equal(t, before, h.lamports(t, kp.Address()))
}

func TestRepeatedDepositsOverflow(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	h.must(t, kp, KindInitialize, 0)

	remaining := h.lamports(t, kp.Address())
	h.must(t, kp, KindDeposit, remaining)

	topUp := math.MaxUint64 - remaining
	require.True(t, h.x.Airdrop(kp.Address(), topUp).Succeeded())
	h.must(t, kp, KindDeposit, topUp)
	require.Equal(t, uint64(math.MaxUint64), h.info(t, kp.Address()).Balance)

	require.True(t, h.x.Airdrop(kp.Address(), 1).Succeeded())
	for i := 0; i < 3; i++ {
		assertCode(t, h.submit(t, kp, KindDeposit, 1), Overflow)
	}

	info := h.info(t, kp.Address())
	assert.Equal(t, uint64(math.MaxUint64), info.Balance)
	assertInSync(t, info)
	assert.Equal(t, uint64(1), h.lamports(t, kp.Address()))
}

func TestCloseRequiresEmptyVault(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	h.must(t, kp, KindInitialize, 0)
	h.must(t, kp, KindDeposit, 10)

	assertCode(t, h.submit(t, kp, KindClose, 0), VaultNotEmpty)
	assert.True(t, h.info(t, kp.Address()).Initialized)

	h.must(t, kp, KindWithdraw, 10)
	h.must(t, kp, KindClose, 0)

	info := h.info(t, kp.Address())
	assert.False(t, info.Initialized)
	assert.Zero(t, info.EscrowHeld)
	// 押金退回，余额回到初始值
	assert.Equal(t, uint64(sol), h.lamports(t, kp.Address()))
}

func TestCloseSweepsUntrackedEscrowValue(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	h.must(t, kp, KindInitialize, 0)

	info := h.info(t, kp.Address())
	require.True(t, h.x.Airdrop(info.Escrow, 777).Succeeded())
	assert.Zero(t, h.info(t, kp.Address()).Balance)

	rc := h.submit(t, kp, KindClose, 0)
	require.True(t, rc.Succeeded(), rc.Error)
	assert.Contains(t, rc.Logs, "swept 777 untracked lamports from escrow")

	escrow, err := h.x.Account(info.Escrow)
	require.NoError(t, err)
	assert.Nil(t, escrow)
	assert.Equal(t, uint64(sol+777), h.lamports(t, kp.Address()))

	// 关闭后可以重新初始化
	h.must(t, kp, KindInitialize, 0)
}

func TestOnlyOwnerMayOperate(t *testing.T) {
	h := newHarness(t)
	alice := h.newOwner(t, sol)
	mallory := h.newOwner(t, sol)
	h.must(t, alice, KindInitialize, 0)
	h.must(t, alice, KindDeposit, 100)

	before := h.info(t, alice.Address())
	malloryBefore := h.lamports(t, mallory.Address())

	for _, kind := range []string{KindDeposit, KindWithdraw, KindClose} {
		rc := h.x.Execute(h.build(t, mallory, kind, alice.Address(), 50))
		assertCode(t, rc, Unauthorized)
	}
	// 替别人初始化也不行
	bob := h.newOwner(t, sol)
	assertCode(t, h.x.Execute(h.build(t, mallory, KindInitialize, bob.Address(), 0)), Unauthorized)

	assert.Equal(t, before, h.info(t, alice.Address()))
	assert.Equal(t, malloryBefore, h.lamports(t, mallory.Address()))
	assert.False(t, h.info(t, bob.Address()).Initialized)
}

func TestConcurrentDepositsAndWithdrawals(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, 10*sol)
	h.must(t, kp, KindInitialize, 0)
	h.must(t, kp, KindDeposit, 1000)

	var ixs []*types.Instruction
	for i := 0; i < 20; i++ {
		ixs = append(ixs, h.build(t, kp, KindDeposit, types.Address{}, 7))
		ixs = append(ixs, h.build(t, kp, KindWithdraw, types.Address{}, 5))
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for _, ix := range ixs {
		wg.Add(1)
		go func(ix *types.Instruction) {
			defer wg.Done()
			if !h.x.Execute(ix).Succeeded() {
				failed.Add(1)
			}
		}(ix)
	}
	wg.Wait()

	require.Zero(t, failed.Load())
	info := h.info(t, kp.Address())
	assert.Equal(t, uint64(1000+20*7-20*5), info.Balance)
	assertInSync(t, info)
}

func TestIndependentOwnersInParallel(t *testing.T) {
	h := newHarness(t)
	owners := make([]*types.Keypair, 8)
	for i := range owners {
		owners[i] = h.newOwner(t, sol)
	}

	var wg sync.WaitGroup
	for _, kp := range owners {
		initIx := h.build(t, kp, KindInitialize, types.Address{}, 0)
		depositIx := h.build(t, kp, KindDeposit, types.Address{}, 300)
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.x.Execute(initIx)
			h.x.Execute(depositIx)
		}()
	}
	wg.Wait()

	for _, kp := range owners {
		info := h.info(t, kp.Address())
		assert.True(t, info.Initialized)
		assert.Equal(t, uint64(300), info.Balance)
		assertInSync(t, info)
	}
}

func TestRuntimePassthroughErrors(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	h.must(t, kp, KindInitialize, 0)

	rc := h.submit(t, kp, KindInitialize, 0)
	assert.False(t, rc.Succeeded())
	assert.Zero(t, rc.ErrorCode)
	assert.Equal(t, vm.KindAccountAlreadyExists, rc.ErrorKind)
	assert.Contains(t, rc.Error, vm.ErrAccountAlreadyExists.Error())

	rc = h.submit(t, kp, KindDeposit, 2*sol)
	assert.False(t, rc.Succeeded())
	assert.Zero(t, rc.ErrorCode)
	assert.Equal(t, vm.KindInsufficientFunds, rc.ErrorKind)
	assert.Zero(t, h.info(t, kp.Address()).Balance)

	poor := h.newOwner(t, 0)
	rc = h.submit(t, poor, KindInitialize, 0)
	assert.Equal(t, vm.KindInsufficientFunds, rc.ErrorKind)

	// 程序错误的 kind 就是错误码的变体名
	rc = h.submit(t, kp, KindWithdraw, 0)
	assert.Equal(t, InvalidAmount.Code(), rc.ErrorCode)
	assert.Equal(t, InvalidAmount.Name(), rc.ErrorKind)
}

func TestWithdrawFromUninitializedVault(t *testing.T) {
	h := newHarness(t)
	kp := h.newOwner(t, sol)
	assertCode(t, h.submit(t, kp, KindWithdraw, 1), AccountNotInitialized)
	assertCode(t, h.submit(t, kp, KindDeposit, 1), AccountNotInitialized)
	assertCode(t, h.submit(t, kp, KindClose, 0), AccountNotInitialized)
}

// ========== Controller 直接调用 ==========

func newCtx(t *testing.T, owner types.Address) (*Controller, *vm.InvokeContext) {
	t.Helper()
	ctl := NewController(types.NewDeriver(programID, 16))
	ctx := vm.NewInvokeContext(programID, vm.DefaultRent(), vm.NewStateView(nil), owner)
	require.NoError(t, ctx.Airdrop(owner, sol))
	return ctl, ctx
}

func TestTamperedEscrowBumpIsFatal(t *testing.T) {
	kp, err := types.GenerateKeypair()
	require.NoError(t, err)
	owner := kp.Address()
	ctl, ctx := newCtx(t, owner)

	st, err := ctl.Initialize(ctx, owner)
	require.NoError(t, err)
	_, err = ctl.Deposit(ctx, owner, 100)
	require.NoError(t, err)

	addrs, err := ctl.Derive(owner)
	require.NoError(t, err)
	st.Balance = 100
	st.EscrowBump--
	require.NoError(t, ctx.WriteData(addrs.State, st.Marshal()))

	_, err = ctl.Withdraw(ctx, owner, 10)
	assert.ErrorIs(t, err, vm.ErrDerivationMismatch)
	assert.Equal(t, vm.KindDerivationMismatch, vm.ErrorKind(err))
}

func TestControllerErrorsAreTyped(t *testing.T) {
	kp, _ := types.GenerateKeypair()
	owner := kp.Address()
	ctl, ctx := newCtx(t, owner)

	_, err := ctl.Deposit(ctx, owner, 0)
	assert.ErrorIs(t, err, InvalidAmount)

	_, err = ctl.Withdraw(ctx, owner, 1)
	assert.ErrorIs(t, err, AccountNotInitialized)

	_, err = ctl.Initialize(ctx, owner)
	require.NoError(t, err)

	_, err = ctl.Withdraw(ctx, owner, 1)
	assert.ErrorIs(t, err, InsufficientBalance)

	var coded vm.CodedError
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, uint32(6001), coded.Code())
}

func TestAddressesBoundByConstruction(t *testing.T) {
	ctl := NewController(types.NewDeriver(programID, 16))
	a, _ := types.GenerateKeypair()
	b, _ := types.GenerateKeypair()

	addrsA, err := ctl.Derive(a.Address())
	require.NoError(t, err)
	addrsB, err := ctl.Derive(b.Address())
	require.NoError(t, err)

	assert.NotEqual(t, addrsA.State, addrsB.State)
	assert.NotEqual(t, addrsA.Escrow, addrsB.Escrow)
	assert.False(t, types.IsOnCurve(addrsA.State[:]))
	assert.False(t, types.IsOnCurve(addrsA.Escrow[:]))

	proof := types.NewDerivationProof(addrsA.EscrowBump, EscrowSeed, addrsA.State.Bytes())
	require.NoError(t, proof.Verify(programID, addrsA.Escrow))
	assert.ErrorIs(t, proof.Verify(programID, addrsB.Escrow), types.ErrDerivationMismatch)
}

// ========== 编码 / 错误码 ==========

func TestVaultStateCodec(t *testing.T) {
	assert.Equal(t, 50, Space)
	kp, _ := types.GenerateKeypair()
	st := &VaultState{Owner: kp.Address(), Balance: math.MaxUint64, EscrowBump: 254, StateBump: 253}

	raw := st.Marshal()
	assert.Len(t, raw, Space)
	got, err := UnmarshalVaultState(raw)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	raw[0] ^= 0xff
	_, err = UnmarshalVaultState(raw)
	assert.Error(t, err)
	_, err = UnmarshalVaultState(raw[:10])
	assert.Error(t, err)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, uint32(6000), InvalidAmount.Code())
	assert.Equal(t, uint32(6003), VaultNotEmpty.Code())
	assert.Equal(t, "Vault must be empty before closing", VaultNotEmpty.Message())
	assert.Equal(t, "InsufficientBalance", InsufficientBalance.Name())
	assert.Contains(t, Overflow.Error(), "6002")

	code, ok := ErrorCodeFromCode(6005)
	assert.True(t, ok)
	assert.Equal(t, AccountNotInitialized, code)
	_, ok = ErrorCodeFromCode(42)
	assert.False(t, ok)
}
