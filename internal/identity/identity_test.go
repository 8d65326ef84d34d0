package identity

import "testing"

func TestClassifySender(t *testing.T) {
	tests := []struct {
		name string
		id   *Identity
		want SenderType
	}{
		{"nil identity", nil, SenderVisitor},
		{"anonymous", &Identity{Role: RoleVisitor}, SenderVisitor},
		{"admin", &Identity{ID: "a1", Role: RoleAdmin}, SenderAdmin},
		{"registered", &Identity{ID: "u1", Role: RoleRegistered}, SenderRegistered},
		{"unknown role with id", &Identity{ID: "u2"}, SenderRegistered},
	}
	for _, tt := range tests {
		if got := ClassifySender(tt.id); got != tt.want {
			t.Errorf("%s: ClassifySender() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFullName(t *testing.T) {
	id := Identity{FirstName: "Ada", LastName: "Okafor"}
	if got := id.FullName(); got != "Ada Okafor" {
		t.Errorf("FullName() = %q, want Ada Okafor", got)
	}

	solo := Identity{FirstName: "Ada"}
	if got := solo.FullName(); got != "Ada" {
		t.Errorf("FullName() = %q, want Ada", got)
	}
}
