package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

func TestAccountFromMnemonicIsDeterministic(t *testing.T) {
	_, addr1, err := accountFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	_, addr2, err := accountFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if addr1 != addr2 {
		t.Fatalf("derivation not deterministic: %s vs %s", addr1.Hex(), addr2.Hex())
	}
}

func TestAccountFromMnemonicRejectsGarbage(t *testing.T) {
	if _, _, err := accountFromMnemonic("definitely not a mnemonic"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}

func recoverSigner(t *testing.T, hash []byte, sigHex string) common.Address {
	t.Helper()
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("unexpected signature length %d", len(sig))
	}
	cp := make([]byte, 65)
	copy(cp, sig)
	cp[64] -= 27
	pub, err := crypto.SigToPub(hash, cp)
	if err != nil {
		t.Fatalf("recover signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pub)
}

func TestDelegateProducesVerifiableSignatures(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	fixedNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return fixedNow }

	key, err := client.Delegate(context.Background(), 77)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	if key.OwnerID != 77 || key.AppFID != 4212 {
		t.Fatalf("unexpected key identity: %+v", key)
	}
	if key.Deadline != fixedNow.Add(client.keyTTL).Unix() {
		t.Fatalf("unexpected deadline %d", key.Deadline)
	}
	if !key.Sponsor.WellFormed() {
		t.Fatalf("sponsor proof malformed: %+v", key.Sponsor)
	}

	_, appAddr, err := accountFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatalf("derive app key: %v", err)
	}

	// The delegation signature must recover to the app key under the
	// validator typed-data domain.
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
			Name:              client.domainName,
			Version:           client.domainVersion,
			ChainId:           math.NewHexOrDecimal256(client.chainID),
			VerifyingContract: client.validatorContract,
		},
		Message: apitypes.TypedDataMessage{
			"requestFid": math.NewHexOrDecimal256(client.appFID),
			"key":        hexutil.Encode(common.LeftPadBytes(common.HexToAddress(key.Address).Bytes(), 32)),
			"deadline":   math.NewHexOrDecimal256(key.Deadline),
		},
	}
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		t.Fatalf("hash typed data: %v", err)
	}
	if got := recoverSigner(t, hash, key.Signature); got != appAddr {
		t.Fatalf("delegation signer %s, want app %s", got.Hex(), appAddr.Hex())
	}

	// The sponsor co-signature is a personal sign over the delegation
	// signature bytes, also by the app key.
	sigBytes := hexutil.MustDecode(key.Signature)
	if got := recoverSigner(t, accounts.TextHash(sigBytes), key.Sponsor.Signature); got != appAddr {
		t.Fatalf("sponsor signer %s, want app %s", got.Hex(), appAddr.Hex())
	}
}

func TestDelegateMintsDistinctAddresses(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	first, err := client.Delegate(context.Background(), 1)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	second, err := client.Delegate(context.Background(), 2)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	if strings.EqualFold(first.Address, second.Address) {
		t.Fatalf("expected fresh addresses, both %s", first.Address)
	}
}

func TestSignChallengeRoundTrip(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	key, err := client.Delegate(context.Background(), 9)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}

	const message = "example.com wants you to sign in with your Ethereum account:\n0x0"
	signed, err := client.SignChallenge(context.Background(), 9, key.Address, message)
	if err != nil {
		t.Fatalf("sign challenge failed: %v", err)
	}
	if signed.Message != message {
		t.Fatalf("message altered: %q", signed.Message)
	}
	if got := recoverSigner(t, accounts.TextHash([]byte(message)), signed.Signature); got != common.HexToAddress(key.Address) {
		t.Fatalf("challenge signer %s, want delegated %s", got.Hex(), key.Address)
	}
}

func TestSignChallengeUnknownDelegation(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	if _, err := client.SignChallenge(context.Background(), 9, "0xABC0000000000000000000000000000000000001", "msg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSignChallengeRejectsEmptyMessage(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	key, err := client.Delegate(context.Background(), 3)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	if _, err := client.SignChallenge(context.Background(), 3, key.Address, "  "); err == nil {
		t.Fatal("expected error for empty challenge")
	}
}

func TestForgetDropsKeyMaterial(t *testing.T) {
	client := newTestClient(t, "http://registry.local")
	key, err := client.Delegate(context.Background(), 5)
	if err != nil {
		t.Fatalf("delegate failed: %v", err)
	}
	client.Forget(5, key.Address)
	if _, err := client.SignChallenge(context.Background(), 5, key.Address, "msg"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after forget, got %v", err)
	}
}

func TestChecksumAddress(t *testing.T) {
	got := ChecksumAddress(" 0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359 ")
	if got != "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359" {
		t.Fatalf("unexpected checksum %q", got)
	}
}
