package keycard

import (
	"errors"
	"fmt"

	"github.com/status-im/keycard-host/apdu"
	"github.com/status-im/keycard-host/derivationpath"
	"github.com/status-im/keycard-host/globalplatform"
)

const (
	InsInit                 = uint8(0xFE)
	InsFactoryReset         = uint8(0xFD)
	InsOpenSecureChannel    = uint8(0x10)
	InsMutuallyAuthenticate = uint8(0x11)
	InsPair                 = uint8(0x12)
	InsUnpair               = uint8(0x13)
	InsIdentify             = uint8(0x14)
	InsVerifyPIN            = uint8(0x20)
	InsChangeSecret         = uint8(0x21)
	InsUnblockPIN           = uint8(0x22)
	InsLoadKey              = uint8(0xD0)
	InsDeriveKey            = uint8(0xD1)
	InsGenerateMnemonic     = uint8(0xD2)
	InsRemoveKey            = uint8(0xD3)
	InsGenerateKey          = uint8(0xD4)
	InsSign                 = uint8(0xC0)
	InsSetPinlessPath       = uint8(0xC1)
	InsExportKey            = uint8(0xC2)
	InsGetData              = uint8(0xCA)
	InsGetStatus            = uint8(0xF2)
	InsStoreData            = uint8(0xE2)

	P1PairingFirstStep     = uint8(0x00)
	P1PairingFinalStep     = uint8(0x01)
	P1GetStatusApplication = uint8(0x00)
	P1GetStatusKeyPath     = uint8(0x01)

	P1DeriveKeyFromMaster  = uint8(0x00)
	P1DeriveKeyFromParent  = uint8(0x40)
	P1DeriveKeyFromCurrent = uint8(0x80)

	P1ChangeSecretPIN           = uint8(0x00)
	P1ChangeSecretPUK           = uint8(0x01)
	P1ChangeSecretPairingSecret = uint8(0x02)

	P1LoadKeyECC         = uint8(0x01)
	P1LoadKeyExtendedECC = uint8(0x02)
	P1LoadKeySeed        = uint8(0x03)

	P1SignCurrentKey           = uint8(0x00)
	P1SignDerive               = uint8(0x01)
	P1SignDeriveAndMakeCurrent = uint8(0x02)
	P1SignPinless              = uint8(0x03)

	P2SignECDSA = uint8(0x00)

	P1ExportKeyCurrent              = uint8(0x00)
	P1ExportKeyDerive               = uint8(0x01)
	P1ExportKeyDeriveAndMakeCurrent = uint8(0x02)
	P2ExportKeyPrivateAndPublic     = uint8(0x00)
	P2ExportKeyPublicOnly           = uint8(0x01)
	P2ExportKeyExtendedPublic       = uint8(0x02)

	P1StoreDataPublic = uint8(0x00)
	P1StoreDataNDEF   = uint8(0x01)
	P1StoreDataCash   = uint8(0x02)

	P1FactoryResetMagic = uint8(0xAA)
	P2FactoryResetMagic = uint8(0x55)

	SwSecurityConditionNotSatisfied = uint16(0x6982)
	SwConditionsNotSatisfied        = uint16(0x6985)
	SwWrongData                     = uint16(0x6A80)
	SwAlgorithmNotSupported         = uint16(0x6A81)
	SwNoAvailablePairingSlots       = uint16(0x6A84)
	SwIncorrectP1P2                 = uint16(0x6A86)
	SwReferencedDataNotFound        = uint16(0x6A88)
	SwInsNotSupported               = uint16(0x6D00)

	// SwWrongPINMask masks the 0x63CX status words carrying the remaining
	// attempts in the low nibble.
	SwWrongPINMask = uint16(0x63C0)

	signatureHashLength  = 32
	identChallengeLength = 32
	loadSeedLength       = 64
	tagLoadKeyTemplate   = uint8(0xA1)
)

var ErrInvalidDataTooShort = errors.New("data must be a 32 byte hash")

func NewCommandInit(data []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsInit,
		0,
		0,
		data,
	)
}

func NewCommandFactoryReset() *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsFactoryReset,
		P1FactoryResetMagic,
		P2FactoryResetMagic,
		[]byte{},
	)
}

func NewCommandPairFirstStep(challenge []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsPair,
		P1PairingFirstStep,
		0,
		challenge,
	)
}

func NewCommandPairFinalStep(cryptogramHash []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsPair,
		P1PairingFinalStep,
		0,
		cryptogramHash,
	)
}

func NewCommandUnpair(index uint8) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsUnpair,
		index,
		0,
		[]byte{},
	)
}

func NewCommandIdentify(challenge []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsIdentify,
		0,
		0,
		challenge,
	)
}

func NewCommandOpenSecureChannel(pairingIndex uint8, pubKey []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsOpenSecureChannel,
		pairingIndex,
		0,
		pubKey,
	)
}

func NewCommandMutuallyAuthenticate(data []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsMutuallyAuthenticate,
		0,
		0,
		data,
	)
}

func NewCommandGetStatus(p1 uint8) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsGetStatus,
		p1,
		0,
		[]byte{},
	)
}

func NewCommandGenerateKey() *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsGenerateKey,
		0,
		0,
		[]byte{},
	)
}

func NewCommandGenerateMnemonic(checksumSize byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsGenerateMnemonic,
		checksumSize,
		0,
		[]byte{},
	)
}

func NewCommandRemoveKey() *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsRemoveKey,
		0,
		0,
		[]byte{},
	)
}

func NewCommandVerifyPIN(pin string) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsVerifyPIN,
		0,
		0,
		[]byte(pin),
	)
}

func NewCommandChangePIN(pin string) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsChangeSecret,
		P1ChangeSecretPIN,
		0,
		[]byte(pin),
	)
}

func NewCommandChangePUK(puk string) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsChangeSecret,
		P1ChangeSecretPUK,
		0,
		[]byte(puk),
	)
}

func NewCommandChangePairingSecret(secret []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsChangeSecret,
		P1ChangeSecretPairingSecret,
		0,
		secret,
	)
}

func NewCommandUnblockPIN(puk string, newPIN string) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsUnblockPIN,
		0,
		0,
		[]byte(puk+newPIN),
	)
}

func NewCommandLoadSeed(seed []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsLoadKey,
		P1LoadKeySeed,
		0,
		seed,
	)
}

// NewCommandLoadKeyPair loads an ECC keypair. pubKey may be empty, the card
// recomputes it. A non-empty chainCode makes the key an extended keypair.
func NewCommandLoadKeyPair(pubKey, privKey, chainCode []byte) (*apdu.Command, error) {
	var inner []byte

	if len(pubKey) > 0 {
		tlv, err := apdu.NewTLV(uint8(0x80), pubKey)
		if err != nil {
			return nil, err
		}
		inner = append(inner, tlv...)
	}

	privTLV, err := apdu.NewTLV(uint8(0x81), privKey)
	if err != nil {
		return nil, err
	}
	inner = append(inner, privTLV...)

	p1 := P1LoadKeyECC
	if len(chainCode) > 0 {
		chainTLV, err := apdu.NewTLV(uint8(0x82), chainCode)
		if err != nil {
			return nil, err
		}
		inner = append(inner, chainTLV...)
		p1 = P1LoadKeyExtendedECC
	}

	data, err := apdu.NewTLV(tagLoadKeyTemplate, inner)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsLoadKey,
		p1,
		0,
		data,
	), nil
}

func NewCommandDeriveKey(pathStr string) (*apdu.Command, error) {
	startingPoint, path, err := derivationpath.Decode(pathStr)
	if err != nil {
		return nil, err
	}

	p1, err := derivationP1FromStartingPoint(startingPoint)
	if err != nil {
		return nil, err
	}

	data, err := derivationpath.EncodeToBytes(path)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsDeriveKey,
		p1,
		0,
		data,
	), nil
}

func NewCommandExportKey(p1 uint8, p2 uint8, pathStr string) (*apdu.Command, error) {
	startingPoint, path, err := derivationpath.Decode(pathStr)
	if err != nil {
		return nil, err
	}

	deriveP1, err := derivationP1FromStartingPoint(startingPoint)
	if err != nil {
		return nil, err
	}

	data, err := derivationpath.EncodeToBytes(path)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsExportKey,
		p1|deriveP1,
		p2,
		data,
	), nil
}

func NewCommandSetPinlessPath(pathStr string) (*apdu.Command, error) {
	startingPoint, path, err := derivationpath.Decode(pathStr)
	if err != nil {
		return nil, err
	}

	if len(path) > 0 && startingPoint != derivationpath.StartingPointMaster {
		return nil, fmt.Errorf("pinless path must be set with an absolute path")
	}

	data, err := derivationpath.EncodeToBytes(path)
	if err != nil {
		return nil, err
	}

	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsSetPinlessPath,
		0,
		0,
		data,
	), nil
}

func NewCommandSign(data []byte, p1 uint8, pathStr string) (*apdu.Command, error) {
	if len(data) != signatureHashLength {
		return nil, ErrInvalidDataTooShort
	}

	if p1 == P1SignDerive || p1 == P1SignDeriveAndMakeCurrent {
		startingPoint, path, err := derivationpath.Decode(pathStr)
		if err != nil {
			return nil, err
		}

		deriveP1, err := derivationP1FromStartingPoint(startingPoint)
		if err != nil {
			return nil, err
		}

		pathData, err := derivationpath.EncodeToBytes(path)
		if err != nil {
			return nil, err
		}

		p1 |= deriveP1
		data = append(data, pathData...)
	}

	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsSign,
		p1,
		P2SignECDSA,
		data,
	), nil
}

func NewCommandGetData(typ uint8) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsGetData,
		typ,
		0,
		[]byte{},
	)
}

func NewCommandStoreData(typ uint8, data []byte) *apdu.Command {
	return apdu.NewCommand(
		globalplatform.ClaGp,
		InsStoreData,
		typ,
		0,
		data,
	)
}

// derivationP1FromStartingPoint maps the path starting point to the P1 source
// indicator shared by DeriveKey, ExportKey and Sign.
func derivationP1FromStartingPoint(s derivationpath.StartingPoint) (uint8, error) {
	switch s {
	case derivationpath.StartingPointMaster:
		return P1DeriveKeyFromMaster, nil
	case derivationpath.StartingPointParent:
		return P1DeriveKeyFromParent, nil
	case derivationpath.StartingPointCurrent:
		return P1DeriveKeyFromCurrent, nil
	default:
		return uint8(0), fmt.Errorf("invalid startingPoint %d", s)
	}
}
