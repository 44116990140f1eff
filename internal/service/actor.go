package service

import (
	"strings"
)

// Actor roles recognised by the engine.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleMentor  = "mentor"
	RoleAdmin   = "admin"
	RoleSystem  = "system"
)

// Actor is an authenticated caller. The concrete variant decides which
// transitions it may attempt: only a StudentActor completes tasks and only a
// MentorActor verifies them or manages plans.
type Actor interface {
	ActorID() uint
	ActorRole() string
}

// StudentActor is a learner working through assigned tasks.
type StudentActor struct {
	ID uint
}

// ActorID implements Actor.
func (a StudentActor) ActorID() uint { return a.ID }

// ActorRole implements Actor.
func (a StudentActor) ActorRole() string { return RoleStudent }

// MentorActor is a teacher, mentor or administrator.
type MentorActor struct {
	ID   uint
	Role string
}

// ActorID implements Actor.
func (a MentorActor) ActorID() uint { return a.ID }

// ActorRole implements Actor.
func (a MentorActor) ActorRole() string {
	if a.Role == "" {
		return RoleTeacher
	}
	return a.Role
}

// SystemActor attributes background work such as retention sweeps.
type SystemActor struct{}

// ActorID implements Actor.
func (SystemActor) ActorID() uint { return 0 }

// ActorRole implements Actor.
func (SystemActor) ActorRole() string { return RoleSystem }

// NewActor builds the actor variant matching an authenticated role.
func NewActor(id uint, role string) (Actor, error) {
	if id == 0 {
		return nil, forbiddenf("authenticated user required")
	}

	switch normalized := strings.ToLower(strings.TrimSpace(role)); normalized {
	case RoleStudent:
		return StudentActor{ID: id}, nil
	case RoleTeacher, RoleMentor, RoleAdmin:
		return MentorActor{ID: id, Role: normalized}, nil
	default:
		return nil, forbiddenf("role %q cannot act on study plans", role)
	}
}

func requireMentor(actor Actor) (MentorActor, error) {
	mentor, ok := actor.(MentorActor)
	if !ok || mentor.ID == 0 {
		return MentorActor{}, forbiddenf("only teachers and mentors may manage study plans")
	}
	return mentor, nil
}
