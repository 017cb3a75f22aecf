package erc20_test

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/erc20"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const transferABI = `[{"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}]`

var _ = Describe("Transfer payload", func() {
	to := common.HexToAddress("0xabcdef0123456789abcdef0123456789abcdefef")

	It("derives the well-known selector", func() {
		Expect(erc20.Selector(erc20.TransferSignature)).To(Equal(erc20.TransferSelector))
	})

	It("pads the destination and the amount to 32 bytes each", func() {
		data, err := erc20.EncodeTransfer(to, big.NewInt(255))
		Expect(err).NotTo(HaveOccurred())

		encoded := strings.TrimPrefix(hexutil.Encode(data), "0x")
		Expect(encoded).To(HaveLen(8 + 64 + 64))
		Expect(encoded[:8]).To(Equal("a9059cbb"))
		Expect(encoded[8:72]).To(Equal(strings.Repeat("0", 24) + "abcdef0123456789abcdef0123456789abcdefef"))
		Expect(encoded[72:]).To(Equal(strings.Repeat("0", 62) + "ff"))
	})

	It("matches the ABI packer", func() {
		parsed, err := abi.JSON(strings.NewReader(transferABI))
		Expect(err).NotTo(HaveOccurred())

		amount, _ := new(big.Int).SetString("20000000000000000000", 10)
		want, err := parsed.Pack("transfer", to, amount)
		Expect(err).NotTo(HaveOccurred())

		got, err := erc20.EncodeTransfer(to, amount)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	DescribeTable("round-trips amounts that fit in 32 bytes",
		func(amount *big.Int) {
			data, err := erc20.EncodeTransfer(to, amount)
			Expect(err).NotTo(HaveOccurred())

			gotTo, gotAmount, err := erc20.DecodeTransfer(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotTo).To(Equal(to))
			Expect(gotAmount.Cmp(amount)).To(BeZero())
		},
		Entry("zero", big.NewInt(0)),
		Entry("one", big.NewInt(1)),
		Entry("255", big.NewInt(255)),
		Entry("max uint256", new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))),
	)

	It("fails fast when the amount needs more than 32 bytes", func() {
		tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
		data, err := erc20.EncodeTransfer(to, tooBig)
		Expect(data).To(BeNil())

		var encErr core.EncodingError
		Expect(errors.As(err, &encErr)).To(BeTrue())
	})

	It("rejects negative and missing amounts", func() {
		_, err := erc20.EncodeTransfer(to, big.NewInt(-1))
		Expect(err).To(HaveOccurred())
		_, err = erc20.EncodeTransfer(to, nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects truncated call data", func() {
		_, _, err := erc20.DecodeTransfer([]byte{0xa9, 0x05, 0x9c, 0xbb})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("balanceOf", func() {
	It("packs the holder behind the balanceOf selector", func() {
		holder := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		data, err := erc20.PackBalanceOf(holder)
		Expect(err).NotTo(HaveOccurred())
		Expect(hexutil.Encode(data[:4])).To(Equal("0x70a08231"))
		Expect(data).To(HaveLen(36))
	})

	It("unpacks a uint256 result", func() {
		output := common.LeftPadBytes(big.NewInt(20).Bytes(), 32)
		balance, err := erc20.UnpackBalanceOf(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(balance.Int64()).To(Equal(int64(20)))
	})
})
