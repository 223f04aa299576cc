package message

// BlockType identifies a MessageBlock's wire encoding, spec.md §6's
// "Block types used by the core" list.
type BlockType uint8

const (
	BlockSetInsulinSchedule BlockType = iota + 1
	BlockBolusExtra
	BlockTempBasalExtra
	BlockBasalScheduleExtra
	BlockGetStatus
	BlockCancelDelivery
	BlockConfigureAlerts
	BlockAcknowledgeAlert
	BlockFaultConfig
	BlockBeepConfig
	BlockDeactivatePod
	BlockStatusResponse
	BlockPodInfoResponse
	BlockErrorResponse
)

func (t BlockType) String() string {
	switch t {
	case BlockSetInsulinSchedule:
		return "SetInsulinSchedule"
	case BlockBolusExtra:
		return "BolusExtra"
	case BlockTempBasalExtra:
		return "TempBasalExtra"
	case BlockBasalScheduleExtra:
		return "BasalScheduleExtra"
	case BlockGetStatus:
		return "GetStatus"
	case BlockCancelDelivery:
		return "CancelDelivery"
	case BlockConfigureAlerts:
		return "ConfigureAlerts"
	case BlockAcknowledgeAlert:
		return "AcknowledgeAlert"
	case BlockFaultConfig:
		return "FaultConfig"
	case BlockBeepConfig:
		return "BeepConfig"
	case BlockDeactivatePod:
		return "DeactivatePod"
	case BlockStatusResponse:
		return "StatusResponse"
	case BlockPodInfoResponse:
		return "PodInfoResponse"
	case BlockErrorResponse:
		return "ErrorResponse"
	default:
		return "Unknown"
	}
}

// PodProgressStatus is the pod's self-reported lifecycle stage, distinct
// from (but tracked against) the controller's own podstate.SetupProgress.
type PodProgressStatus uint8

const (
	PodProgressAddressAssigned PodProgressStatus = iota
	PodProgressPairingSuccess
	PodProgressPriming
	PodProgressPrimingCompleted
	PodProgressBasalInitialized
	PodProgressInsertingCannula
	PodProgressReadyForDelivery
	PodProgressRunningAboveMinVolume
	PodProgressRunningBelowMinVolume
	PodProgressAlertExpiredShuttingDown
	PodProgressInactive
	PodProgressActivationTimeExceeded
)

func (p PodProgressStatus) String() string {
	switch p {
	case PodProgressAddressAssigned:
		return "addressAssigned"
	case PodProgressPairingSuccess:
		return "pairingSuccess"
	case PodProgressPriming:
		return "priming"
	case PodProgressPrimingCompleted:
		return "primingCompleted"
	case PodProgressBasalInitialized:
		return "basalInitialized"
	case PodProgressInsertingCannula:
		return "insertingCannula"
	case PodProgressReadyForDelivery:
		return "readyForDelivery"
	case PodProgressRunningAboveMinVolume:
		return "runningAboveMinVolume"
	case PodProgressRunningBelowMinVolume:
		return "runningBelowMinVolume"
	case PodProgressAlertExpiredShuttingDown:
		return "alertExpiredShuttingDown"
	case PodProgressInactive:
		return "inactive"
	case PodProgressActivationTimeExceeded:
		return "activationTimeExceeded"
	default:
		return "unknown"
	}
}

// DeliveryType is a bitset naming which of {basal, tempBasal, bolus} a
// CancelDelivery command targets, per spec.md §4.6.
type DeliveryType uint8

const (
	DeliveryNone      DeliveryType = 0
	DeliveryBasal     DeliveryType = 1 << 0
	DeliveryTempBasal DeliveryType = 1 << 1
	DeliveryBolus     DeliveryType = 1 << 2

	DeliveryAllButBasal DeliveryType = DeliveryTempBasal | DeliveryBolus
	DeliveryAll         DeliveryType = DeliveryBasal | DeliveryTempBasal | DeliveryBolus
)

// Has reports whether t includes every bit set in mask.
func (t DeliveryType) Has(mask DeliveryType) bool { return t&mask == mask }

// BeepType selects the confirmation beep pattern a command asks the pod to
// emit, threaded through bolus/tempBasal/basalSchedule/cancel per
// SPEC_FULL.md §6.
type BeepType uint8

const (
	NoBeep BeepType = iota
	BeepBipBip
	BeepBeeeeep
)

// ErrorResponseKind discriminates the two ErrorResponse subtypes spec.md §6
// describes: badNonce and nonretryable.
type ErrorResponseKind uint8

const (
	ErrorBadNonce ErrorResponseKind = iota
	ErrorNonretryable
)

// AlertSlot identifies one of the pod's eight configurable alert slots.
type AlertSlot uint8

const NumAlertSlots = 8

// AlertSet is a bitset over the eight AlertSlots, used for
// activeAlertSlots and for AcknowledgeAlert's argument.
type AlertSet uint8

// Has reports whether slot is set in the bitset.
func (a AlertSet) Has(slot AlertSlot) bool {
	return a&(1<<slot) != 0
}

// With returns a copy of a with slot set.
func (a AlertSet) With(slot AlertSlot) AlertSet {
	return a | (1 << slot)
}

// Without returns a copy of a with slot cleared.
func (a AlertSet) Without(slot AlertSlot) AlertSet {
	return a &^ (1 << slot)
}
