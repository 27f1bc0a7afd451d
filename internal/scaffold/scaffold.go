// Package scaffold generates the initial markdown body for newly created
// records. The body is human-owned prose from the moment it is written;
// only creation uses these templates, updates pass the existing body
// through untouched.
package scaffold

import (
	"fmt"

	"github.com/arpa73/AIKnowSys-sub002/internal/models"
)

// Body returns the boilerplate body for a new record of the given type.
func Body(t models.RecordType, id string) string {
	switch t {
	case models.TypeSession:
		return fmt.Sprintf(`# Session: %s

## Goal

_What this session set out to do._

## Work log

## Outcome

`, id)
	case models.TypePlan:
		return fmt.Sprintf(`# Plan: %s

## Context

_Why this plan exists._

## Approach

## Steps

- [ ]

## Risks

`, id)
	case models.TypePattern:
		return fmt.Sprintf(`# Pattern: %s

## Problem

## Solution

## Example

## When to use

`, id)
	}
	return fmt.Sprintf("# %s\n", id)
}
