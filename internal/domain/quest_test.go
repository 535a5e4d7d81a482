package domain

import "testing"

func TestAdvanceObjective_CompletesQuestWhenAllObjectivesDone(t *testing.T) {
	q := Quest{
		ID:     "q1",
		Status: QuestNotStarted,
		Objectives: []Objective{
			{ID: "o1", TargetProgress: 3},
			{ID: "o2", TargetProgress: 1},
		},
	}
	q = AdvanceObjective(q, "o1", 3)
	if q.Status != QuestInProgress {
		t.Fatalf("Status = %v, want IN_PROGRESS after partial completion", q.Status)
	}
	q = AdvanceObjective(q, "o2", 1)
	if q.Status != QuestCompleted {
		t.Fatalf("Status = %v, want COMPLETED", q.Status)
	}
}

func TestAdvanceObjective_ClampsAtTarget(t *testing.T) {
	q := Quest{Objectives: []Objective{{ID: "o1", TargetProgress: 5}}}
	q = AdvanceObjective(q, "o1", 9999)
	if q.Objectives[0].CurrentProgress != 5 {
		t.Errorf("CurrentProgress = %d, want 5", q.Objectives[0].CurrentProgress)
	}
}

func TestAdvanceObjective_NoOpOnTerminalQuest(t *testing.T) {
	q := Quest{Status: QuestFailed, Objectives: []Objective{{ID: "o1", TargetProgress: 5}}}
	next := AdvanceObjective(q, "o1", 5)
	if next.Status != QuestFailed {
		t.Errorf("Status = %v, want FAILED (unchanged)", next.Status)
	}
	if next.Objectives[0].CurrentProgress != 0 {
		t.Error("a terminal quest must not accept further progress")
	}
}

func TestQuestStatus_IsTerminal(t *testing.T) {
	if !QuestCompleted.IsTerminal() || !QuestFailed.IsTerminal() {
		t.Error("COMPLETED and FAILED must be terminal")
	}
	if QuestInProgress.IsTerminal() || QuestNotStarted.IsTerminal() {
		t.Error("IN_PROGRESS and NOT_STARTED must not be terminal")
	}
}
