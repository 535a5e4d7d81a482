package domain

// GameState is the full mutable-in-memory, durably-snapshotted view of one
// game in progress. It is handled as an immutable value: every transition
// returns a new GameState rather than mutating the receiver. Only the
// persistence layer and orchestrator hold a mutable cell pointing at one of
// these snapshots.
type GameState struct {
	GameID        string     `json:"gameId"`
	SystemType    SystemType `json:"systemType"`
	WorldSettings WorldSettings `json:"worldSettings"`
	CharacterSheet CharacterSheet `json:"characterSheet"`
	CurrentLocation Location `json:"currentLocation"`
	PlayerName    string     `json:"playerName"`
	Backstory     string     `json:"backstory"`

	DiscoveredTemplateLocations map[string]struct{} `json:"discoveredTemplateLocations"`
	CustomLocations             map[string]Location `json:"customLocations"`
	NPCsByLocation              map[string][]NPC     `json:"npcsByLocation"`
	ActiveQuests                map[string]Quest     `json:"activeQuests"`
	CompletedQuests             map[string]struct{}  `json:"completedQuests"`

	DeathCount            int  `json:"deathCount"`
	OpeningNarrationPlayed bool `json:"openingNarrationPlayed"`
}

// NewGameState constructs the bootstrap GameState for a freshly created
// game: level 1, grade E, positioned at the given starting location, with
// empty discovery/quest sets and the opening narration not yet played.
func NewGameState(gameID, playerName string, systemType SystemType, settings WorldSettings, startLocation Location, sheet CharacterSheet) GameState {
	return GameState{
		GameID:          gameID,
		SystemType:      systemType,
		WorldSettings:   settings,
		CharacterSheet:  sheet,
		CurrentLocation: startLocation,
		PlayerName:      playerName,
		DiscoveredTemplateLocations: map[string]struct{}{startLocation.ID: {}},
		CustomLocations:             make(map[string]Location),
		NPCsByLocation:              make(map[string][]NPC),
		ActiveQuests:                make(map[string]Quest),
		CompletedQuests:             make(map[string]struct{}),
	}
}

// Invariant reports whether s satisfies the structural invariants every
// snapshot must hold: every NPC's LocationID matches the key it is filed
// under, and no active quest id also appears in CompletedQuests.
func Invariant(s GameState) bool {
	for locID, npcs := range s.NPCsByLocation {
		for _, n := range npcs {
			if n.LocationID != locID {
				return false
			}
		}
	}
	for questID := range s.ActiveQuests {
		if _, done := s.CompletedQuests[questID]; done {
			return false
		}
	}
	return true
}

// DiscoverLocation marks a template location id as discovered.
func DiscoverLocation(s GameState, locationID string) GameState {
	next := s
	discovered := make(map[string]struct{}, len(s.DiscoveredTemplateLocations)+1)
	for k := range s.DiscoveredTemplateLocations {
		discovered[k] = struct{}{}
	}
	discovered[locationID] = struct{}{}
	next.DiscoveredTemplateLocations = discovered
	return next
}

// AddCustomLocation records a player-discovered location and connects it
// from the current location.
func AddCustomLocation(s GameState, loc Location) GameState {
	next := s
	locs := make(map[string]Location, len(s.CustomLocations)+1)
	for k, v := range s.CustomLocations {
		locs[k] = v
	}
	locs[loc.ID] = loc
	next.CustomLocations = locs
	next.CurrentLocation = AddConnection(s.CurrentLocation, loc.ID)
	return next
}

// PlaceNPC files an NPC under its LocationID in NPCsByLocation, preserving
// the invariant that the map key equals the NPC's LocationID.
func PlaceNPC(s GameState, n NPC) GameState {
	next := s
	byLoc := make(map[string][]NPC, len(s.NPCsByLocation))
	for k, v := range s.NPCsByLocation {
		byLoc[k] = v
	}
	byLoc[n.LocationID] = append(append([]NPC{}, byLoc[n.LocationID]...), n)
	next.NPCsByLocation = byLoc
	return next
}

// AddActiveQuest registers a quest as active, removing it from the
// completed set if present (re-taking a previously completed quest).
func AddActiveQuest(s GameState, q Quest) GameState {
	next := s
	active := make(map[string]Quest, len(s.ActiveQuests)+1)
	for k, v := range s.ActiveQuests {
		active[k] = v
	}
	active[q.ID] = q
	next.ActiveQuests = active
	if _, done := s.CompletedQuests[q.ID]; done {
		completed := make(map[string]struct{}, len(s.CompletedQuests))
		for k := range s.CompletedQuests {
			if k != q.ID {
				completed[k] = struct{}{}
			}
		}
		next.CompletedQuests = completed
	}
	return next
}

// CompleteQuest moves questID from ActiveQuests to CompletedQuests.
func CompleteQuest(s GameState, questID string) GameState {
	next := s
	active := make(map[string]Quest, len(s.ActiveQuests))
	for k, v := range s.ActiveQuests {
		if k != questID {
			active[k] = v
		}
	}
	next.ActiveQuests = active
	completed := make(map[string]struct{}, len(s.CompletedQuests)+1)
	for k := range s.CompletedQuests {
		completed[k] = struct{}{}
	}
	completed[questID] = struct{}{}
	next.CompletedQuests = completed
	return next
}

// RecordDeath increments the death count and resets HP to 1 (a death is
// recoverable, never a terminal game state).
func RecordDeath(s GameState) GameState {
	next := s
	next.DeathCount++
	next.CharacterSheet = Heal(next.CharacterSheet, 1)
	return next
}
