package registry

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/tyler-smith/go-bip39"

	"minihost/go-backend/pkg/models"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrAddressMismatch = errors.New("delegated address does not match key material")
	errKeyFromSeed     = errors.New("could not derive key from seed")
	errEmptyChallenge  = errors.New("challenge message is empty")
)

const delegatedKeyEntropyBits = 128

// accountFromMnemonic derives a secp256k1 account from a mnemonic the same
// way delegated keys are minted: seed bytes hashed to a curve scalar.
func accountFromMnemonic(mnemonic string) (*ecdsa.PrivateKey, common.Address, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, common.Address{}, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	material := crypto.Keccak256(seed)
	// Re-hash on the astronomically rare out-of-range scalar.
	for i := 0; i < 4; i++ {
		priv, err := crypto.ToECDSA(material)
		if err == nil {
			return priv, crypto.PubkeyToAddress(priv.PublicKey), nil
		}
		material = crypto.Keccak256(material)
	}
	return nil, common.Address{}, errKeyFromSeed
}

// Delegate generates a fresh delegated key for the owner: new mnemonic, new
// address, a typed-data delegation signature by the app key, and the app's
// sponsor co-signature over that signature. The mnemonic goes into the vault
// and never leaves this package.
func (c *Client) Delegate(ctx context.Context, ownerID int64) (models.DelegatedKey, error) {
	_ = ctx // local key generation; no network suspension point

	entropy, err := bip39.NewEntropy(delegatedKeyEntropyBits)
	if err != nil {
		return models.DelegatedKey{}, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return models.DelegatedKey{}, err
	}
	_, address, err := accountFromMnemonic(mnemonic)
	if err != nil {
		return models.DelegatedKey{}, err
	}

	deadline := c.now().Add(c.keyTTL).Unix()
	signature, err := c.signDelegation(address, deadline)
	if err != nil {
		return models.DelegatedKey{}, err
	}
	sponsorSig, err := signPersonal(c.appKey, hexutil.MustDecode(signature))
	if err != nil {
		return models.DelegatedKey{}, err
	}

	c.vault.Put(ownerID, address.Hex(), mnemonic)

	return models.DelegatedKey{
		OwnerID:   ownerID,
		Address:   address.Hex(),
		AppFID:    c.appFID,
		Deadline:  deadline,
		Signature: signature,
		Sponsor: models.SponsorProof{
			FID:                 c.appFID,
			Signature:           sponsorSig,
			SponsoredByRegistry: false,
		},
	}, nil
}

// signDelegation produces the EIP-712 SignedKeyRequest signature binding the
// delegated address to the app identity under the validator domain.
func (c *Client) signDelegation(address common.Address, deadline int64) (string, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"SignedKeyRequest": []apitypes.Type{
				{Name: "requestFid", Type: "uint256"},
				{Name: "key", Type: "bytes"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "SignedKeyRequest",
		Domain: apitypes.TypedDataDomain{
			Name:              c.domainName,
			Version:           c.domainVersion,
			ChainId:           math.NewHexOrDecimal256(c.chainID),
			VerifyingContract: c.validatorContract,
		},
		Message: apitypes.TypedDataMessage{
			// key is the abi-encoded delegated address.
			"requestFid": math.NewHexOrDecimal256(c.appFID),
			"key":        hexutil.Encode(common.LeftPadBytes(address.Bytes(), 32)),
			"deadline":   math.NewHexOrDecimal256(deadline),
		},
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", err
	}
	return signHash(c.appKey, hash)
}

// SignChallenge signs an EIP-191 personal message with the owner's delegated
// key. The delegation must exist in the vault and derive to the requested
// address.
func (c *Client) SignChallenge(ctx context.Context, ownerID int64, address, message string) (SignedMessage, error) {
	_ = ctx
	if strings.TrimSpace(message) == "" {
		return SignedMessage{}, errEmptyChallenge
	}
	mnemonic, ok := c.vault.Get(ownerID, address)
	if !ok {
		return SignedMessage{}, ErrNotFound
	}
	priv, derived, err := accountFromMnemonic(mnemonic)
	if err != nil {
		return SignedMessage{}, err
	}
	if !strings.EqualFold(derived.Hex(), strings.TrimSpace(address)) {
		return SignedMessage{}, ErrAddressMismatch
	}
	signature, err := signPersonal(priv, []byte(message))
	if err != nil {
		return SignedMessage{}, err
	}
	return SignedMessage{
		Signature: signature,
		Message:   message,
		Address:   derived.Hex(),
	}, nil
}

// Forget discards the private material of a delegation, e.g. after the
// registry rejected its signature as stale.
func (c *Client) Forget(ownerID int64, address string) {
	c.vault.Delete(ownerID, address)
}

func signPersonal(priv *ecdsa.PrivateKey, payload []byte) (string, error) {
	return signHash(priv, accounts.TextHash(payload))
}

func signHash(priv *ecdsa.PrivateKey, hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, priv)
	if err != nil {
		return "", err
	}
	// Recovery id to Ethereum convention.
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// ChecksumAddress normalizes an address to its EIP-55 checksummed form.
func ChecksumAddress(address string) string {
	return common.HexToAddress(strings.TrimSpace(address)).Hex()
}
