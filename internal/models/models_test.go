package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestCase_Fields(t *testing.T) {
	typ := reflect.TypeOf(Case{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "UserID", "index")
	assertGormTag(t, typ, "Status", "size:32")
	assertGormTag(t, typ, "Status", "default:New")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "DeliveryStatus", "size:64")
	assertGormTag(t, typ, "Notes", "type:text")
	assertGormTag(t, typ, "Priority", "default:Normal")

	assertFieldType(t, typ, "ID", "string")
	assertFieldType(t, typ, "LastWorkflowRun", "*time.Time")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
	assertFieldType(t, typ, "UpdatedAt", "time.Time")
}

func TestSession_Fields(t *testing.T) {
	typ := reflect.TypeOf(Session{})

	assertGormTag(t, typ, "UserID", "primaryKey")
	assertGormTag(t, typ, "CurrentStage", "default:awaiting_email")
	assertGormTag(t, typ, "CurrentStage", "index")
	assertGormTag(t, typ, "ActiveCase", "size:64")
	assertGormTag(t, typ, "LastActivity", "index")

	assertFieldType(t, typ, "ActiveCase", "*string")
	assertFieldType(t, typ, "ImageCount", "int")
	assertFieldType(t, typ, "LastActivity", "time.Time")
}

func TestDentist_Fields(t *testing.T) {
	typ := reflect.TypeOf(Dentist{})

	assertGormTag(t, typ, "Email", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "UserID", "index")
}

func TestAppointment_Fields(t *testing.T) {
	typ := reflect.TypeOf(Appointment{})

	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "StartsAt", "not null")
	assertGormTag(t, typ, "StartsAt", "index")
}

func TestMessageLog_Fields(t *testing.T) {
	typ := reflect.TypeOf(MessageLog{})

	assertGormTag(t, typ, "UserID", "not null")
	assertGormTag(t, typ, "Direction", "size:8")
	assertGormTag(t, typ, "Body", "type:text")
	assertGormTag(t, typ, "CreatedAt", "index")
}
