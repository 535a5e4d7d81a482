package domain

import "testing"

func TestUpdateRelationship_ClampsToBounds(t *testing.T) {
	n := NPC{ID: "elder"}
	n = UpdateRelationship(n, "game1", 1000)
	if AffinityFor(n, "game1") != maxAffinity {
		t.Errorf("affinity = %d, want %d", AffinityFor(n, "game1"), maxAffinity)
	}
	n = UpdateRelationship(n, "game1", -5000)
	if AffinityFor(n, "game1") != minAffinity {
		t.Errorf("affinity = %d, want %d", AffinityFor(n, "game1"), minAffinity)
	}
}

func TestUpdateRelationship_PerGameIsolation(t *testing.T) {
	n := NPC{ID: "elder"}
	n = UpdateRelationship(n, "game1", 10)
	n = UpdateRelationship(n, "game2", -10)
	if AffinityFor(n, "game1") != 10 {
		t.Errorf("game1 affinity = %d, want 10", AffinityFor(n, "game1"))
	}
	if AffinityFor(n, "game2") != -10 {
		t.Errorf("game2 affinity = %d, want -10", AffinityFor(n, "game2"))
	}
}

func TestAppendConversation_IsAppendOnly(t *testing.T) {
	n := NPC{ID: "elder"}
	n = AppendConversation(n, ConversationTurn{Speaker: "player", Text: "hello"})
	n = AppendConversation(n, ConversationTurn{Speaker: "elder", Text: "greetings"})
	if len(n.History) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(n.History))
	}
	if n.History[0].Text != "hello" || n.History[1].Text != "greetings" {
		t.Error("history order does not match append order")
	}
}

func TestPurchaseFromShop_DecrementsStock(t *testing.T) {
	n := NPC{ID: "merchant", Shop: &Shop{Items: []ShopItem{{ItemID: "potion", Stock: 3}}}}
	n, ok := PurchaseFromShop(n, "potion", 2)
	if !ok {
		t.Fatal("expected purchase to succeed")
	}
	if n.Shop.Items[0].Stock != 1 {
		t.Errorf("remaining stock = %d, want 1", n.Shop.Items[0].Stock)
	}
	_, ok = PurchaseFromShop(n, "potion", 5)
	if ok {
		t.Error("expected purchase exceeding stock to fail")
	}
}

func TestPurchaseFromShop_UnlimitedStock(t *testing.T) {
	n := NPC{ID: "merchant", Shop: &Shop{Items: []ShopItem{{ItemID: "rope", Stock: -1}}}}
	n, ok := PurchaseFromShop(n, "rope", 1000)
	if !ok {
		t.Fatal("expected unlimited-stock purchase to succeed")
	}
	if n.Shop.Items[0].Stock != -1 {
		t.Error("unlimited stock marker should be preserved")
	}
}
