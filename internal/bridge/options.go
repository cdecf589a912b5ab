package bridge

// Parameter and result shapes for the capability surface. The bridge only
// validates shape; the behavior behind each action belongs to the host.

type ReadyOptions struct {
	DisableNativeGestures bool `json:"disableNativeGestures,omitempty"`
}

type OpenURLOptions struct {
	URL string `json:"url"`
}

type SetPrimaryButtonOptions struct {
	Text     string `json:"text"`
	Loading  bool   `json:"loading,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Hidden   bool   `json:"hidden,omitempty"`
}

type SignInOptions struct {
	Nonce             string `json:"nonce"`
	NotBefore         string `json:"notBefore,omitempty"`
	ExpirationTime    string `json:"expirationTime,omitempty"`
	AcceptAuthAddress bool   `json:"acceptAuthAddress,omitempty"`
}

type ViewCastOptions struct {
	Hash     string `json:"hash"`
	CloseApp bool   `json:"close,omitempty"`
}

type ViewProfileOptions struct {
	FID int64 `json:"fid"`
}

type ViewTokenOptions struct {
	Token string `json:"token"`
}

type SendTokenOptions struct {
	Token            string `json:"token,omitempty"`
	Amount           string `json:"amount,omitempty"`
	RecipientAddress string `json:"recipientAddress,omitempty"`
	RecipientFID     int64  `json:"recipientFid,omitempty"`
}

type SwapTokenOptions struct {
	SellToken  string `json:"sellToken,omitempty"`
	BuyToken   string `json:"buyToken,omitempty"`
	SellAmount string `json:"sellAmount,omitempty"`
}

// TokenActionResult reports a send/swap outcome; rejections carry a reason
// instead of an error so the guest can distinguish user choice from failure.
type TokenActionResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type OpenMiniAppOptions struct {
	URL string `json:"url"`
}

type ComposeCastOptions struct {
	Text       string   `json:"text,omitempty"`
	Embeds     []string `json:"embeds,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	ChannelKey string   `json:"channelKey,omitempty"`
	CloseApp   bool     `json:"close,omitempty"`
}

type ComposedCast struct {
	Hash       string   `json:"hash"`
	Text       string   `json:"text,omitempty"`
	Embeds     []string `json:"embeds,omitempty"`
	Parent     string   `json:"parent,omitempty"`
	ChannelKey string   `json:"channelKey,omitempty"`
}

type ComposeCastResult struct {
	Cast *ComposedCast `json:"cast,omitempty"`
}

type ImpactOccurredOptions struct {
	Style string `json:"style"`
}

type NotificationOccurredOptions struct {
	Type string `json:"type"`
}

type BackStateOptions struct {
	Visible bool `json:"visible"`
}

// GuestContext is the host-provided document served to the guest before any
// capability call.
type GuestContext struct {
	Client   GuestClient   `json:"client"`
	User     GuestUser     `json:"user"`
	Features GuestFeatures `json:"features"`
}

type GuestClient struct {
	ClientFID    int64  `json:"clientFid"`
	Added        bool   `json:"added"`
	PlatformType string `json:"platformType"`
}

type GuestUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PfpURL      string `json:"pfpUrl,omitempty"`
}

type GuestFeatures struct {
	Haptics                   bool `json:"haptics"`
	CameraAndMicrophoneAccess bool `json:"cameraAndMicrophoneAccess"`
}
