package bridge

// Capability names a host action an embedded guest may request. The
// advertised set is fixed at build time; guests cannot negotiate additions.
type Capability string

const (
	CapReady            Capability = "actions.ready"
	CapOpenURL          Capability = "actions.openUrl"
	CapClose            Capability = "actions.close"
	CapSetPrimaryButton Capability = "actions.setPrimaryButton"
	CapSignIn           Capability = "actions.signIn"
	CapViewCast         Capability = "actions.viewCast"
	CapViewProfile      Capability = "actions.viewProfile"
	CapComposeCast      Capability = "actions.composeCast"
	CapViewToken        Capability = "actions.viewToken"
	CapSendToken        Capability = "actions.sendToken"
	CapSwapToken        Capability = "actions.swapToken"
	CapOpenMiniApp      Capability = "actions.openMiniApp"
	CapCameraAndMic     Capability = "actions.requestCameraAndMicrophoneAccess"
	CapHapticsImpact    Capability = "haptics.impactOccurred"
	CapHapticsNotify    Capability = "haptics.notificationOccurred"
	CapHapticsSelection Capability = "haptics.selectionChanged"
	CapBack             Capability = "back"
)

// defaultCapabilities is the full advertised order. Capabilities whose host
// action is absent at setup are filtered out, never reordered.
var defaultCapabilities = []Capability{
	CapReady,
	CapOpenURL,
	CapClose,
	CapSetPrimaryButton,
	CapSignIn,
	CapViewCast,
	CapViewProfile,
	CapComposeCast,
	CapViewToken,
	CapSendToken,
	CapSwapToken,
	CapOpenMiniApp,
	CapCameraAndMic,
	CapHapticsImpact,
	CapHapticsNotify,
	CapHapticsSelection,
	CapBack,
}

// DefaultCapabilities returns a copy of the full capability order.
func DefaultCapabilities() []Capability {
	return append([]Capability(nil), defaultCapabilities...)
}
