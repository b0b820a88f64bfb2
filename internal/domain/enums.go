package domain

import (
	"fmt"
	"strings"
)

type ClientType string

const (
	ClientPublisher         ClientType = "Publisher"
	ClientProductionCompany ClientType = "Production Company"
	ClientIndieAuthor       ClientType = "Indie Author"
	ClientTalentAgency      ClientType = "Talent Agency"
)

// ValidClientTypes is the canonical set of accepted client types.
var ValidClientTypes = map[ClientType]bool{
	ClientPublisher:         true,
	ClientProductionCompany: true,
	ClientIndieAuthor:       true,
	ClientTalentAgency:      true,
}

// ParseClientType matches a client type case-insensitively.
func ParseClientType(s string) (ClientType, bool) {
	s = strings.TrimSpace(s)
	for ct := range ValidClientTypes {
		if strings.EqualFold(string(ct), s) {
			return ct, true
		}
	}
	return "", false
}

// Format is the base production format derived from an intake style.
type Format string

const (
	FormatSolo  Format = "Solo"
	FormatDual  Format = "Dual"
	FormatDuet  Format = "Duet"
	FormatMulti Format = "Multi"
)

var Formats = []Format{FormatSolo, FormatDual, FormatDuet, FormatMulti}

const (
	// MaxMultiRoles is the hard upper bound for multi-cast manifests.
	MaxMultiRoles = 10
	audioDramaTag = "audio drama"
)

// ParseFormat accepts a bare format name, case-insensitively.
func ParseFormat(s string) (Format, bool) {
	s = strings.TrimSpace(s)
	for _, f := range Formats {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// ParseStyle derives the base format of a style string such as "Solo Narration",
// "Multi-Cast" or "Duet Audio Drama", and reports the audio drama variant.
func ParseStyle(style string) (Format, bool, error) {
	lowered := strings.ToLower(strings.TrimSpace(style))
	if lowered == "" {
		return "", false, fmt.Errorf("style is required")
	}
	drama := strings.Contains(lowered, audioDramaTag)
	for _, f := range Formats {
		if strings.HasPrefix(lowered, strings.ToLower(string(f))) {
			return f, drama, nil
		}
	}
	return "", drama, fmt.Errorf("unknown style %q", style)
}

// SlotCeiling is the maximum number of roles a casting manifest may hold.
// multiCap applies to Multi only and is clamped to MaxMultiRoles.
func (f Format) SlotCeiling(multiCap int) int {
	switch f {
	case FormatSolo:
		return 1
	case FormatDual, FormatDuet:
		return 2
	case FormatMulti:
		if multiCap <= 0 || multiCap > MaxMultiRoles {
			return MaxMultiRoles
		}
		return multiCap
	}
	return 0
}

type IntakeStatus string

const (
	IntakeNew      IntakeStatus = "NEW"
	IntakeGreenlit IntakeStatus = "Greenlit"
)

type ProductionStatus string

const (
	StatusPreProduction  ProductionStatus = "Pre-Production"
	StatusRecording      ProductionStatus = "Recording"
	StatusPostProduction ProductionStatus = "Post-Production"
	StatusReview         ProductionStatus = "Review"
	StatusFinalDelivery  ProductionStatus = "Final Delivery"
	StatusComplete       ProductionStatus = "Complete"
	StatusCancelled      ProductionStatus = "Cancelled"
	StatusPaid           ProductionStatus = "Paid"
)

var ValidProductionStatuses = map[ProductionStatus]bool{
	StatusPreProduction:  true,
	StatusRecording:      true,
	StatusPostProduction: true,
	StatusReview:         true,
	StatusFinalDelivery:  true,
	StatusComplete:       true,
	StatusCancelled:      true,
	StatusPaid:           true,
}

// Terminal reports whether the status archives the production.
func (s ProductionStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled || s == StatusPaid
}

// TerminalStatuses lists archived statuses.
var TerminalStatuses = []ProductionStatus{StatusComplete, StatusCancelled, StatusPaid}

type ContractStatus string

const (
	ContractDraft  ContractStatus = "Draft"
	ContractActive ContractStatus = "Active"
)

func ParseContractStatus(s string) (ContractStatus, bool) {
	switch {
	case strings.EqualFold(s, string(ContractDraft)):
		return ContractDraft, true
	case strings.EqualFold(s, string(ContractActive)):
		return ContractActive, true
	}
	return "", false
}

type SlotStatus string

const (
	SlotOpen   SlotStatus = "Open"
	SlotFilled SlotStatus = "Filled"
)

type SlotType string

const (
	SlotPrimary SlotType = "primary"
	SlotBackup  SlotType = "backup"
)

func ParseSlotType(s string) (SlotType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(SlotPrimary):
		return SlotPrimary, true
	case string(SlotBackup):
		return SlotBackup, true
	}
	return "", false
}

type ProductionStep string

const (
	StepPreProduction  ProductionStep = "Pre-Production"
	StepRecording      ProductionStep = "Recording"
	StepPostProduction ProductionStep = "Post-Production"
	StepReview         ProductionStep = "Review"
	StepFinalDelivery  ProductionStep = "Final Delivery"
)

// Steps is the fixed, ordered workflow.
var Steps = []ProductionStep{
	StepPreProduction,
	StepRecording,
	StepPostProduction,
	StepReview,
	StepFinalDelivery,
}

// Index returns the position of the step in Steps, or -1.
func (s ProductionStep) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

func ParseStep(s string) (ProductionStep, bool) {
	s = strings.TrimSpace(s)
	for _, step := range Steps {
		if strings.EqualFold(string(step), s) {
			return step, true
		}
	}
	return "", false
}

type RosterStatus string

const (
	RosterActive   RosterStatus = "active"
	RosterInactive RosterStatus = "inactive"
)

// IntakeSort orders pending intake listings.
type IntakeSort string

const (
	SortNewest IntakeSort = "newest"
	SortOldest IntakeSort = "oldest"
	SortTitle  IntakeSort = "title"
)

func ParseIntakeSort(s string) (IntakeSort, bool) {
	switch IntakeSort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNewest:
		return SortNewest, true
	case SortOldest:
		return SortOldest, true
	case SortTitle:
		return SortTitle, true
	}
	return "", false
}
