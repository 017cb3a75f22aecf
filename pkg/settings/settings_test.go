package settings_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/luxfi/cleanvault/pkg/settings"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
)

const contract = "0x00000000000000000000000000000000000c0de0"

var _ = Describe("Collect", func() {
	var (
		v         *viper.Viper
		keysDir   string
		masterKey string
	)

	BeforeEach(func() {
		v = viper.New()
		settings.Configure(v)
		keysDir = GinkgoT().TempDir()
		masterKey = filepath.Join(GinkgoT().TempDir(), "master.json")
		Expect(os.WriteFile(masterKey, []byte(`{"address":"aa"}`), 0o600)).To(Succeed())
		v.Set(settings.KeyContract, contract)
	})

	It("uses configured values without prompting", func() {
		v.Set(settings.KeyKeysPath, keysDir)
		v.Set(settings.KeyMasterKeyPath, masterKey)
		v.Set(settings.KeyMasterPassword, "master")
		v.Set(settings.KeyKeysPassword, "slave")

		s, err := settings.Collect(v, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.KeysPath).To(Equal(keysDir))
		Expect(s.MasterKeyPath).To(Equal(masterKey))
		Expect(s.MasterPassword).To(Equal("master"))
		Expect(s.KeysPassword).To(Equal("slave"))
		Expect(s.Contract).To(Equal(common.HexToAddress(contract)))
		Expect(s.RPCURL).To(Equal("http://localhost:8545"))
		Expect(s.ScanConcurrency).To(Equal(16))
		Expect(s.OutputDir).To(Equal("."))
	})

	It("prompts for missing values and asks again after a bad answer", func() {
		input := strings.Join([]string{
			filepath.Join(keysDir, "missing"),
			keysDir,
			masterKey,
			"",
			"master",
			"slave",
		}, "\n") + "\n"
		out := &bytes.Buffer{}

		s, err := settings.Collect(v, settings.NewTerminalPrompter(strings.NewReader(input), out))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.KeysPath).To(Equal(keysDir))
		Expect(s.MasterPassword).To(Equal("master"))
		Expect(s.KeysPassword).To(Equal("slave"))
		Expect(out.String()).To(ContainSubstring("Enter the path of your private keys folder"))
		Expect(out.String()).To(ContainSubstring("value is required"))
	})

	It("rejects input that runs out", func() {
		_, err := settings.Collect(v, settings.NewTerminalPrompter(strings.NewReader(keysDir+"\n"), &bytes.Buffer{}))
		var inputErr core.InputValidationError
		Expect(errors.As(err, &inputErr)).To(BeTrue())
		Expect(inputErr.Field).To(Equal(settings.KeyMasterKeyPath))
	})

	It("rejects a configured keys path that does not exist", func() {
		v.Set(settings.KeyKeysPath, filepath.Join(keysDir, "missing"))
		_, err := settings.Collect(v, nil)
		var inputErr core.InputValidationError
		Expect(errors.As(err, &inputErr)).To(BeTrue())
		Expect(inputErr.Field).To(Equal(settings.KeyKeysPath))
	})

	It("requires a valid contract address", func() {
		v.Set(settings.KeyKeysPath, keysDir)
		v.Set(settings.KeyMasterKeyPath, masterKey)
		v.Set(settings.KeyMasterPassword, "master")
		v.Set(settings.KeyKeysPassword, "slave")
		v.Set(settings.KeyContract, "not-an-address")

		_, err := settings.Collect(v, nil)
		var inputErr core.InputValidationError
		Expect(errors.As(err, &inputErr)).To(BeTrue())
		Expect(inputErr.Field).To(Equal(settings.KeyContract))
	})

	It("reads the contract from CONTRACT_ADDRESS", func() {
		GinkgoT().Setenv("CONTRACT_ADDRESS", contract)
		fresh := viper.New()
		settings.Configure(fresh)
		fresh.Set(settings.KeyKeysPath, keysDir)
		fresh.Set(settings.KeyMasterKeyPath, masterKey)
		fresh.Set(settings.KeyMasterPassword, "master")
		fresh.Set(settings.KeyKeysPassword, "slave")

		s, err := settings.Collect(fresh, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Contract).To(Equal(common.HexToAddress(contract)))
	})

	It("reads prefixed environment variables", func() {
		GinkgoT().Setenv("CLEANVAULT_KEYS_PASSWORD", "from-env")
		fresh := viper.New()
		settings.Configure(fresh)
		Expect(fresh.GetString(settings.KeyKeysPassword)).To(Equal("from-env"))
	})
})
