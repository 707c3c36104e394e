// Fleetsync - Adaptive Fleet Telemetry Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetsync

package validation

import (
	"strings"
	"testing"
)

type testRecord struct {
	DeviceID  string  `validate:"required"`
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

func TestValidateStruct_Valid(t *testing.T) {
	t.Parallel()

	rec := testRecord{DeviceID: "veh-1", Latitude: 10.5, Longitude: 20.25}
	if err := ValidateStruct(&rec); err != nil {
		t.Errorf("expected valid record, got %v", err)
	}
}

func TestValidateStruct_CoordinateRanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rec     testRecord
		wantTag string
	}{
		{"latitude too high", testRecord{DeviceID: "d", Latitude: 90.01, Longitude: 0}, "latitude"},
		{"latitude too low", testRecord{DeviceID: "d", Latitude: -91, Longitude: 0}, "latitude"},
		{"longitude too high", testRecord{DeviceID: "d", Latitude: 0, Longitude: 180.5}, "longitude"},
		{"longitude too low", testRecord{DeviceID: "d", Latitude: 0, Longitude: -181}, "longitude"},
		{"missing id", testRecord{Latitude: 0, Longitude: 0}, "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.rec)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !err.HasTag(tt.wantTag) {
				t.Errorf("expected tag %q in %v", tt.wantTag, err.Errors())
			}
		})
	}
}

func TestValidateStruct_BoundaryCoordinates(t *testing.T) {
	t.Parallel()

	// Exact poles and antimeridian are valid.
	for _, rec := range []testRecord{
		{DeviceID: "d", Latitude: 90, Longitude: 180},
		{DeviceID: "d", Latitude: -90, Longitude: -180},
	} {
		if err := ValidateStruct(&rec); err != nil {
			t.Errorf("boundary coordinates should validate, got %v", err)
		}
	}
}

func TestStructError_HasField(t *testing.T) {
	t.Parallel()

	rec := testRecord{DeviceID: "veh-1", Latitude: 200}
	err := ValidateStruct(&rec)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !err.HasField("Latitude") {
		t.Errorf("HasField(Latitude) = false, want true; fields: %v", err.Errors())
	}
	if err.HasField("DeviceID") {
		t.Error("HasField(DeviceID) = true for a present id, want false")
	}
}

func TestStructError_Message(t *testing.T) {
	t.Parallel()

	rec := testRecord{Latitude: 200, Longitude: 300}
	err := ValidateStruct(&rec)
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"DeviceID is required", "valid latitude", "valid longitude"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if len(err.Errors()) != 3 {
		t.Errorf("field error count = %d, want 3", len(err.Errors()))
	}
}
