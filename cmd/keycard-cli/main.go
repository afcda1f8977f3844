package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/term"

	keycard "github.com/status-im/keycard-host"
	"github.com/status-im/keycard-host/globalplatform"
	"github.com/status-im/keycard-host/transport"
	"github.com/status-im/keycard-host/types"
)

type commandFunc func(*session) error

// session bundles everything a CLI command needs.
type session struct {
	cmdSet   *keycard.CommandSet
	gpCmdSet *globalplatform.CommandSet
	pairings *pairingStore
}

var (
	logger = log.New("package", "keycard-host/cmd/keycard-cli")

	commands map[string]commandFunc

	flagCommand  = flag.String("c", "", "command")
	flagConfig   = flag.String("cfg", "", "config file path")
	flagCapFile  = flag.String("f", "", "cap file path")
	flagReader   = flag.String("r", "", "reader name")
	flagLogLevel = flag.String("l", "", `log level, one of: "error", "warn", "info", "debug", "trace"`)
)

func initLogger(level string) {
	if level == "" {
		level = "info"
	}

	lvl, err := log.LvlFromString(strings.ToLower(level))
	if err != nil {
		stdlog.Fatal(err)
	}

	handler := log.StreamHandler(os.Stderr, log.TerminalFormat(true))
	log.Root().SetHandler(log.LvlFilterHandler(lvl, handler))
}

func init() {
	commands = map[string]commandFunc{
		"info":          commandInfo,
		"ident":         commandIdent,
		"init":          commandInit,
		"pair":          commandPair,
		"unpair":        commandUnpair,
		"status":        commandStatus,
		"sign":          commandSign,
		"export":        commandExport,
		"mnemonic":      commandMnemonic,
		"factory-reset": commandFactoryReset,
		"install":       commandInstall,
		"delete":        commandDelete,
	}
}

func usage() {
	fmt.Printf("\nUsage: keycard-cli -c COMMAND [FLAGS]\n\nValid commands:\n\n")
	for name := range commands {
		fmt.Printf("- %s\n", name)
	}
	fmt.Print("\nFlags:\n\n")
	flag.PrintDefaults()
	os.Exit(1)
}

func fail(msg string, ctx ...interface{}) {
	logger.Error(msg, ctx...)
	os.Exit(1)
}

func main() {
	flag.Parse()

	cfg, err := LoadConfig(*flagConfig)
	if err != nil {
		stdlog.Fatal(err)
	}

	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
	if *flagReader != "" {
		cfg.Reader = *flagReader
	}

	initLogger(cfg.LogLevel)

	if *flagCommand == "" {
		logger.Error("you must specify a command")
		usage()
	}

	f, ok := commands[*flagCommand]
	if !ok {
		logger.Error("unknown command", "command", *flagCommand)
		usage()
	}

	t, err := transport.NewPCSC()
	if err != nil {
		fail("error establishing card context", "error", err)
	}
	defer func() {
		if err := t.Close(); err != nil {
			logger.Error("error releasing transport", "error", err)
		}
	}()

	reader, err := pickReader(t, cfg.Reader)
	if err != nil {
		fail("error picking reader", "error", err)
	}

	logger.Debug("connecting to card", "reader", reader)
	if err := t.Connect(reader); err != nil {
		fail("error connecting to card", "error", err)
	}

	pairings, err := newPairingStore(cfg.PairingStore)
	if err != nil {
		fail("error opening pairing store", "path", cfg.PairingStore, "error", err)
	}

	channel := transport.NewChannel(t)
	s := &session{
		cmdSet:   keycard.NewCommandSet(channel),
		gpCmdSet: globalplatform.NewCommandSet(channel),
		pairings: pairings,
	}

	if err := f(s); err != nil {
		logger.Error("error executing command", "command", *flagCommand, "error", err)
		os.Exit(1)
	}
}

func pickReader(t transport.Transport, preferred string) (string, error) {
	readers, err := t.ListReaders()
	if err != nil {
		return "", err
	}

	if len(readers) == 0 {
		return "", fmt.Errorf("couldn't find any reader")
	}

	if preferred == "" {
		return readers[0], nil
	}

	for _, r := range readers {
		if strings.Contains(r, preferred) {
			return r, nil
		}
	}

	return "", fmt.Errorf("reader %q not found", preferred)
}

func ask(description string) string {
	r := bufio.NewReader(os.Stdin)
	fmt.Printf("%s: ", description)
	text, err := r.ReadString('\n')
	if err != nil {
		stdlog.Fatal(err)
	}

	return strings.TrimSpace(text)
}

func askSecret(description string) string {
	fmt.Printf("%s: ", description)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		stdlog.Fatal(err)
	}

	return string(secret)
}

// openSession selects the applet, restores the stored pairing for the card
// and opens the secure channel.
func openSession(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	uid := hex.EncodeToString(s.cmdSet.ApplicationInfo.InstanceUID)
	pairing := s.pairings.get(uid)
	if pairing == nil {
		return fmt.Errorf("no pairing stored for card %s, pair first", uid)
	}

	s.cmdSet.SetPairingInfo(pairing.Key, pairing.Index)

	return s.cmdSet.OpenSecureChannel()
}

func commandInfo(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	info := s.cmdSet.ApplicationInfo
	fmt.Printf("Installed: %+v\n", info.Installed)
	fmt.Printf("Initialized: %+v\n", info.Initialized)
	fmt.Printf("InstanceUID: 0x%x\n", info.InstanceUID)
	fmt.Printf("PublicKey: 0x%x\n", info.SecureChannelPublicKey)
	fmt.Printf("Version: %s\n", info.AppVersion())
	fmt.Printf("AvailableSlots: 0x%x\n", info.AvailableSlots)
	fmt.Printf("KeyUID: 0x%x\n", info.KeyUID)
	fmt.Printf("Capabilities: %#.2x\n", uint8(info.Capabilities))

	return nil
}

func commandIdent(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	identPub, err := s.cmdSet.Identify(nil)
	if err != nil {
		return err
	}

	fmt.Printf("Identification key: 0x%x\n", identPub)

	return nil
}

func commandInit(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	secrets, err := keycard.GenerateSecrets()
	if err != nil {
		return err
	}

	if err := s.cmdSet.Init(secrets); err != nil {
		return err
	}

	fmt.Printf("PIN: %s\n", secrets.Pin())
	fmt.Printf("PUK: %s\n", secrets.Puk())
	fmt.Printf("Pairing password: %s\n", secrets.PairingPass())

	return nil
}

func commandPair(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	pairingPass := askSecret("Pairing password")
	if err := s.cmdSet.Pair(pairingPass); err != nil {
		return err
	}

	uid := hex.EncodeToString(s.cmdSet.ApplicationInfo.InstanceUID)
	if err := s.pairings.store(uid, s.cmdSet.PairingInfo); err != nil {
		return err
	}

	fmt.Printf("Paired with index %d\n", s.cmdSet.PairingInfo.Index)

	return nil
}

func commandUnpair(s *session) error {
	if err := openSession(s); err != nil {
		return err
	}

	pin := askSecret("PIN")
	if err := s.cmdSet.VerifyPIN(pin); err != nil {
		return err
	}

	index := uint8(s.cmdSet.PairingInfo.Index)
	if err := s.cmdSet.Unpair(index); err != nil {
		return err
	}

	uid := hex.EncodeToString(s.cmdSet.ApplicationInfo.InstanceUID)
	if err := s.pairings.delete(uid); err != nil {
		return err
	}

	fmt.Printf("Unpaired index %d\n", index)

	return nil
}

func commandStatus(s *session) error {
	if err := openSession(s); err != nil {
		return err
	}

	status, err := s.cmdSet.GetStatusApplication()
	if err != nil {
		return err
	}

	fmt.Printf("PIN retries: %d\n", status.PinRetryCount)
	fmt.Printf("PUK retries: %d\n", status.PUKRetryCount)
	fmt.Printf("Key initialized: %+v\n", status.KeyInitialized)

	pathStatus, err := s.cmdSet.GetStatusKeyPath()
	if err != nil {
		return err
	}

	fmt.Printf("Key path: %s\n", pathStatus.Path)

	return nil
}

func commandSign(s *session) error {
	if err := openSession(s); err != nil {
		return err
	}

	pin := askSecret("PIN")
	if err := s.cmdSet.VerifyPIN(pin); err != nil {
		return err
	}

	hash, err := hex.DecodeString(strings.TrimPrefix(ask("Hash to sign (hex)"), "0x"))
	if err != nil {
		return err
	}

	path := ask("Derivation path (empty for current key)")

	var sig *types.Signature

	if path == "" {
		sig, err = s.cmdSet.Sign(hash)
	} else {
		sig, err = s.cmdSet.SignWithPath(hash, path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("R: 0x%x\nS: 0x%x\nV: %d\n", sig.R(), sig.S(), sig.V())

	return nil
}

func commandExport(s *session) error {
	if err := openSession(s); err != nil {
		return err
	}

	pin := askSecret("PIN")
	if err := s.cmdSet.VerifyPIN(pin); err != nil {
		return err
	}

	path := ask("Derivation path")
	key, err := s.cmdSet.ExportKey(keycard.P1ExportKeyDerive, keycard.P2ExportKeyExtendedPublic, path)
	if err != nil {
		return err
	}

	fmt.Printf("Public key: 0x%x\n", key.PubKey())
	fmt.Printf("Chain code: 0x%x\n", key.ChainCode())

	return nil
}

func commandMnemonic(s *session) error {
	if err := openSession(s); err != nil {
		return err
	}

	pin := askSecret("PIN")
	if err := s.cmdSet.VerifyPIN(pin); err != nil {
		return err
	}

	indexes, err := s.cmdSet.GenerateMnemonic(4)
	if err != nil {
		return err
	}

	fmt.Printf("Word indexes: %v\n", indexes)

	return nil
}

func commandFactoryReset(s *session) error {
	if err := s.cmdSet.Select(); err != nil {
		return err
	}

	if err := s.cmdSet.FactoryReset(); err != nil {
		return err
	}

	fmt.Printf("card reset to factory settings\n")

	return nil
}

func commandInstall(s *session) error {
	if *flagCapFile == "" {
		logger.Error("you must specify a cap file path with the -f flag")
		usage()
	}

	f, err := os.Open(*flagCapFile)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := s.gpCmdSet.Select(); err != nil {
		return err
	}

	if err := s.gpCmdSet.OpenSecureChannel(); err != nil {
		return err
	}

	if err := s.gpCmdSet.DeleteKeycardInstancesAndPackage(); err != nil {
		return err
	}

	fmt.Printf("installation can take a while...\n")
	err = s.gpCmdSet.LoadKeycardPackage(f, func(block, total int) {
		fmt.Printf("\rloading block %d of %d", block+1, total)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	if err := s.gpCmdSet.InstallKeycardApplet(); err != nil {
		return err
	}

	fmt.Printf("applet installed successfully.\n")

	return nil
}

func commandDelete(s *session) error {
	if _, err := s.gpCmdSet.Select(); err != nil {
		return err
	}

	if err := s.gpCmdSet.OpenSecureChannel(); err != nil {
		return err
	}

	if err := s.gpCmdSet.DeleteKeycardInstancesAndPackage(); err != nil {
		return err
	}

	fmt.Printf("applet deleted\n")

	return nil
}
