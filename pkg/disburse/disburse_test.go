package disburse_test

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/luxfi/cleanvault/pkg/chain/chaintest"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/disburse"
	"github.com/luxfi/cleanvault/pkg/erc20"
	"github.com/luxfi/cleanvault/pkg/metrics"
	"github.com/luxfi/log"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const chainID = 1337

func newAccount(amount int64) *core.Account {
	key, err := crypto.GenerateKey()
	Expect(err).NotTo(HaveOccurred())
	acc := &core.Account{Address: crypto.PubkeyToAddress(key.PublicKey), PrivateKey: key}
	if amount >= 0 {
		acc.Amount = big.NewInt(amount)
	}
	return acc
}

var _ = Describe("DefaultParams", func() {
	It("uses the fixed sweep fees", func() {
		p := disburse.DefaultParams()
		Expect(hexutil.EncodeBig(p.GasPrice)).To(Equal("0x12a05f200"))
		Expect(hexutil.EncodeBig(p.NativeValue)).To(Equal("0x11c37937e08000"))
		Expect(p.NativeGasLimit).To(Equal(uint64(0x5208)))
		Expect(p.TokenGasLimit).To(Equal(uint64(910000)))
		Expect(p.GasBudget().Cmp(p.NativeValue)).To(BeNumerically("<=", 0))
	})
})

var _ = Describe("NativeDisburser", func() {
	var (
		ctx       context.Context
		fake      *chaintest.Chain
		master    *core.Account
		targets   []common.Address
		disburser *disburse.NativeDisburser
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = chaintest.New(chainID)
		master = newAccount(-1)
		fake.SetNonce(master.Address, 7)
		targets = []common.Address{newAccount(1).Address, newAccount(1).Address, newAccount(1).Address}
		disburser = disburse.NewNativeDisburser(fake, big.NewInt(chainID), disburse.DefaultParams(), log.NewLogger("test"), metrics.NewNop())
	})

	It("pays every target once, in order, with increasing nonces", func() {
		report, err := disburser.Disburse(ctx, master, targets)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Phase).To(Equal(disburse.PhaseNative))
		Expect(report.Receipts).To(HaveLen(3))
		Expect(report.Cursor).To(BeZero())
		Expect(report.Completed(len(targets))).To(BeTrue())

		Expect(fake.Sent).To(HaveLen(3))
		for i, tx := range fake.Sent {
			Expect(tx.Nonce()).To(Equal(uint64(7 + i)))
			Expect(*tx.To()).To(Equal(targets[i]))
			Expect(tx.Value().Cmp(disburse.DefaultParams().NativeValue)).To(BeZero())
			Expect(tx.Gas()).To(Equal(uint64(21000)))
			Expect(tx.GasPrice().Cmp(disburse.DefaultParams().GasPrice)).To(BeZero())
			Expect(fake.Senders[i]).To(Equal(master.Address))
			Expect(report.Receipts[i].TxHash).To(Equal(tx.Hash()))
		}
		Expect(fake.NonceCalls()).To(Equal(3))
		Expect(fake.Nonce(master.Address)).To(Equal(uint64(10)))
	})

	It("stops at the first failed broadcast and keeps earlier receipts", func() {
		fake.FailSend = func(n int, tx *types.Transaction) error {
			if n == 1 {
				return errors.New("replacement transaction underpriced")
			}
			return nil
		}

		report, err := disburser.Disburse(ctx, master, targets)
		Expect(err).To(HaveOccurred())
		Expect(report.Receipts).To(HaveLen(1))
		Expect(report.Cursor).To(Equal(1))
		Expect(report.Completed(len(targets))).To(BeFalse())

		var dispatchErr *core.DispatchError
		Expect(errors.As(err, &dispatchErr)).To(BeTrue())
		Expect(dispatchErr.Index).To(Equal(1))
		Expect(dispatchErr.Address).To(Equal(targets[1].Hex()))
		Expect(err.Error()).To(ContainSubstring(targets[1].Hex()))

		var broadcastErr *core.BroadcastError
		Expect(errors.As(err, &broadcastErr)).To(BeTrue())
		Expect(fake.Sent).To(HaveLen(1))
	})

	It("reports nonce lookup failures", func() {
		fake.Offline = true
		report, err := disburser.Disburse(ctx, master, targets)
		var nonceErr *core.NonceQueryError
		Expect(errors.As(err, &nonceErr)).To(BeTrue())
		Expect(report.Receipts).To(BeEmpty())
	})

	It("does nothing for an empty target list", func() {
		report, err := disburser.Disburse(ctx, master, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Receipts).To(BeEmpty())
		Expect(report.Cursor).To(BeZero())
		Expect(fake.Sent).To(BeEmpty())
	})

	It("starts every phase from the first target", func() {
		_, err := disburser.Disburse(ctx, master, targets[:1])
		Expect(err).NotTo(HaveOccurred())
		report, err := disburser.Disburse(ctx, master, targets)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Receipts).To(HaveLen(3))
		Expect(*fake.Sent[1].To()).To(Equal(targets[0]))
	})
})

var _ = Describe("TokenDisburser", func() {
	var (
		ctx       context.Context
		fake      *chaintest.Chain
		contract  common.Address
		master    common.Address
		accounts  []*core.Account
		disburser *disburse.TokenDisburser
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = chaintest.New(chainID)
		contract = common.HexToAddress("0x00000000000000000000000000000000000c0de0")
		master = common.HexToAddress("0x9999999999999999999999999999999999999999")
		accounts = []*core.Account{newAccount(20), newAccount(5)}
		for _, acc := range accounts {
			fake.SetTokenBalance(acc.Address, acc.Amount)
		}
		fake.SetNonce(accounts[1].Address, 3)
		disburser = disburse.NewTokenDisburser(fake, big.NewInt(chainID), contract, disburse.DefaultParams(), log.NewLogger("test"), metrics.NewNop())
	})

	It("sends each account's full balance to the master from the account itself", func() {
		report, err := disburser.Disburse(ctx, accounts, master)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Phase).To(Equal(disburse.PhaseToken))
		Expect(report.Receipts).To(HaveLen(2))
		Expect(report.Cursor).To(BeZero())

		Expect(fake.Sent).To(HaveLen(2))
		for i, tx := range fake.Sent {
			Expect(fake.Senders[i]).To(Equal(accounts[i].Address))
			Expect(*tx.To()).To(Equal(contract))
			Expect(tx.Value().Sign()).To(BeZero())
			Expect(tx.Gas()).To(Equal(uint64(910000)))

			to, amount, err := erc20.DecodeTransfer(tx.Data())
			Expect(err).NotTo(HaveOccurred())
			Expect(to).To(Equal(master))
			Expect(amount.Cmp(accounts[i].Amount)).To(BeZero())
		}
		Expect(fake.Sent[0].Nonce()).To(Equal(uint64(0)))
		Expect(fake.Sent[1].Nonce()).To(Equal(uint64(3)))

		balance, err := fake.CallContract(ctx, balanceOfCall(contract, master), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(new(big.Int).SetBytes(balance).Int64()).To(Equal(int64(25)))
	})

	It("keeps receipts of transfers that failed on-chain", func() {
		fake.Revert = func(tx *types.Transaction) bool { return tx.Nonce() == 0 }

		report, err := disburser.Disburse(ctx, accounts, master)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Receipts).To(HaveLen(2))
		Expect(report.Receipts[0].Status).To(Equal(types.ReceiptStatusFailed))
		Expect(report.Receipts[1].Status).To(Equal(types.ReceiptStatusSuccessful))
	})

	It("refuses to send anything when an amount does not fit 32 bytes", func() {
		accounts[1].Amount = new(big.Int).Lsh(big.NewInt(1), 256)

		report, err := disburser.Disburse(ctx, accounts, master)
		var encErr core.EncodingError
		Expect(errors.As(err, &encErr)).To(BeTrue())
		var dispatchErr *core.DispatchError
		Expect(errors.As(err, &dispatchErr)).To(BeTrue())
		Expect(dispatchErr.Address).To(Equal(accounts[1].Address.Hex()))
		Expect(report.Receipts).To(BeEmpty())
		Expect(fake.Sent).To(BeEmpty())
	})

	It("stops at the failing account", func() {
		fake.FailSend = func(n int, tx *types.Transaction) error {
			if n == 0 {
				return errors.New("insufficient funds for gas * price + value")
			}
			return nil
		}

		report, err := disburser.Disburse(ctx, accounts, master)
		var dispatchErr *core.DispatchError
		Expect(errors.As(err, &dispatchErr)).To(BeTrue())
		Expect(dispatchErr.Phase).To(Equal(disburse.PhaseToken))
		Expect(dispatchErr.Address).To(Equal(accounts[0].Address.Hex()))
		Expect(report.Receipts).To(BeEmpty())
		Expect(fake.Sent).To(BeEmpty())
	})
})

func balanceOfCall(contract, holder common.Address) ethereum.CallMsg {
	data, err := erc20.PackBalanceOf(holder)
	Expect(err).NotTo(HaveOccurred())
	return ethereum.CallMsg{To: &contract, Data: data}
}
