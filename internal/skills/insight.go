package skills

import "github.com/narrativeforge/engine/internal/domain"

// ThresholdEntry maps one action type to the skill it ultimately unlocks.
// Crossing PartialUnlockCount reveals a hint; crossing FullUnlockCount
// grants the skill. Entries are matched in table order, which is also the
// tie-break order when more than one action type's thresholds would unlock
// the same skill in a single call to ApplyAction: the first entry in the
// table wins and the rest are skipped for that skill this call.
type ThresholdEntry struct {
	ActionType         string
	SkillID            string
	PartialUnlockCount int
	FullUnlockCount    int
}

// InsightThresholds is the static action-type -> skill unlock table. It is
// ordered data, not behaviour, and is expected to be extended by whatever
// loads the game's skill catalog; the order given here is authoritative for
// tie-breaking.
var InsightThresholds = []ThresholdEntry{
	{ActionType: "sword_slash", SkillID: "power_strike", PartialUnlockCount: 13, FullUnlockCount: 50},
	{ActionType: "slash", SkillID: "power_strike", PartialUnlockCount: 25, FullUnlockCount: 100},
	{ActionType: "bow_shoot", SkillID: "piercing_shot", PartialUnlockCount: 10, FullUnlockCount: 40},
	{ActionType: "cast", SkillID: "arcane_bolt", PartialUnlockCount: 8, FullUnlockCount: 30},
	{ActionType: "block", SkillID: "iron_guard", PartialUnlockCount: 10, FullUnlockCount: 35},
	{ActionType: "dodge", SkillID: "shadow_step", PartialUnlockCount: 12, FullUnlockCount: 45},
	{ActionType: "sneak", SkillID: "silent_tread", PartialUnlockCount: 10, FullUnlockCount: 30},
}

// SkillCatalog resolves a skill id to its static template. Template data is
// supplied externally (it is data, not logic) — this package only consumes
// it at the moment a skill is granted.
type SkillCatalog interface {
	SkillTemplate(skillID string) (domain.Skill, bool)
}

// InsightSignalKind discriminates the three outcomes ApplyAction can produce
// for a single recorded action.
type InsightSignalKind string

const (
	SignalProgress      InsightSignalKind = "PROGRESS"
	SignalPartialReveal InsightSignalKind = "PARTIAL_REVEAL"
	SignalFullUnlock    InsightSignalKind = "FULL_UNLOCK"
)

// InsightSignal is one observable outcome of recording an action: a 25%
// progress boundary, a partial skill reveal, or a full grant.
type InsightSignal struct {
	Kind       InsightSignalKind
	ActionType string
	SkillID    string
	Count      int
	// BlindName is populated for SignalPartialReveal: a hint name that does
	// not give away the skill's real identity.
	BlindName string
	// Skill is populated for SignalFullUnlock.
	Skill domain.Skill
}

const progressBoundaryFraction = 0.25

// boundaryCrossed reports whether incrementing count from before to after
// crosses a multiple of fraction*full.
func boundaryCrossed(before, after, full int, fraction float64) bool {
	if full <= 0 {
		return false
	}
	step := float64(full) * fraction
	if step <= 0 {
		return false
	}
	return int(float64(before)/step) != int(float64(after)/step)
}

// blindName derives a non-revealing hint label for a partially-learned skill.
func blindName(actionType string) string {
	return "an unfamiliar technique (" + actionType + ")"
}

// ApplyAction records one occurrence of actionType against tracker and
// evaluates every threshold entry keyed to it. ownedSkillIDs is the set of
// skill ids already present on the character sheet, used to enforce that a
// skill is granted at most once across all pathways — including pathways
// unlocked in the same call, via grantedThisCall.
func ApplyAction(tracker domain.ActionInsightTracker, ownedSkillIDs map[string]struct{}, actionType string, catalog SkillCatalog) (domain.ActionInsightTracker, []InsightSignal) {
	before := tracker.Counts[actionType]
	next := domain.RecordAction(tracker, actionType)
	after := next.Counts[actionType]

	var signals []InsightSignal
	grantedThisCall := make(map[string]struct{})

	for _, entry := range InsightThresholds {
		if entry.ActionType != actionType {
			continue
		}
		if _, alreadyOwned := ownedSkillIDs[entry.SkillID]; alreadyOwned {
			continue
		}
		if _, alreadyGranted := grantedThisCall[entry.SkillID]; alreadyGranted {
			continue
		}

		if boundaryCrossed(before, after, entry.FullUnlockCount, progressBoundaryFraction) {
			signals = append(signals, InsightSignal{
				Kind:       SignalProgress,
				ActionType: actionType,
				SkillID:    entry.SkillID,
				Count:      after,
			})
		}

		if before < entry.PartialUnlockCount && after >= entry.PartialUnlockCount && after < entry.FullUnlockCount {
			signals = append(signals, InsightSignal{
				Kind:       SignalPartialReveal,
				ActionType: actionType,
				SkillID:    entry.SkillID,
				Count:      after,
				BlindName:  blindName(actionType),
			})
		}

		if after >= entry.FullUnlockCount {
			tmpl, ok := catalog.SkillTemplate(entry.SkillID)
			if !ok {
				continue
			}
			tmpl.Source = domain.AcquisitionSource{Kind: "insight", ActionType: entry.ActionType}
			signals = append(signals, InsightSignal{
				Kind:       SignalFullUnlock,
				ActionType: actionType,
				SkillID:    entry.SkillID,
				Count:      after,
				Skill:      tmpl,
			})
			grantedThisCall[entry.SkillID] = struct{}{}
		}
	}

	return next, signals
}

// GrantSkill appends a newly unlocked skill to the sheet's skill list. The
// caller is responsible for having checked it is not already owned.
func GrantSkill(c domain.CharacterSheet, s domain.Skill) domain.CharacterSheet {
	next := c
	next.Skills = append(append([]domain.Skill{}, c.Skills...), s)
	return next
}

// OwnedSkillIDs returns the set of skill ids present on the sheet, for use
// as ApplyAction's ownedSkillIDs argument.
func OwnedSkillIDs(c domain.CharacterSheet) map[string]struct{} {
	owned := make(map[string]struct{}, len(c.Skills))
	for _, s := range c.Skills {
		owned[s.ID] = struct{}{}
	}
	return owned
}
