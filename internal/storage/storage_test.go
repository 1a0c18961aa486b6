package storage

import (
	"testing"
	"time"

	"github.com/chunqiusha/cardforge/internal/models"
)

func TestPreviewStore(t *testing.T) {
	s := New()
	now := time.Now()
	s.Set("a", &models.Preview{ID: "a", CreatedAt: now.Add(-time.Minute)})
	s.Set("b", &models.Preview{ID: "b", CreatedAt: now})

	if got, ok := s.Get("a"); !ok || got.ID != "a" {
		t.Fatalf("Get(a) = %v, %v", got, ok)
	}

	list := s.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("List() not newest first: %v", list)
	}

	if _, ok := s.Delete("a"); !ok {
		t.Fatal("Delete(a) reported missing preview")
	}
	if _, ok := s.Get("a"); ok {
		t.Error("preview a still present after delete")
	}
	if _, ok := s.Delete("a"); ok {
		t.Error("second Delete(a) reported a preview")
	}
}
