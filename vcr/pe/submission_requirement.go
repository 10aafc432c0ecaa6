/*
 * Copyright (C) 2024 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package pe

import (
	"fmt"
	"slices"
)

// GroupCandidates is a struct that holds all InputDescriptor/VC candidates for a group
type GroupCandidates struct {
	Name       string
	Candidates []Candidate
}

// Groups returns all the group names from the 'from' field. It traverses the 'from_nested' field recursively.
func (submissionRequirement SubmissionRequirement) Groups() []string {
	result := []string{}
	if submissionRequirement.From != "" {
		result = append(result, submissionRequirement.From)
	}
	for _, nested := range submissionRequirement.FromNested {
		result = append(result, nested.Groups()...)
	}
	//deduplicate by using sort and compact
	slices.Sort(result)
	return slices.Compact(result)
}

func (submissionRequirement SubmissionRequirement) match(availableGroups map[string]GroupCandidates) ([]Candidate, error) {
	if submissionRequirement.From != "" && len(submissionRequirement.FromNested) > 0 {
		return nil, fmt.Errorf("submission requirement (%s) contains both 'from' and 'from_nested'", submissionRequirement.Name)
	}

	if len(submissionRequirement.FromNested) > 0 {
		return submissionRequirement.fromNested(availableGroups)
	}
	return submissionRequirement.from(availableGroups)
}

func (submissionRequirement SubmissionRequirement) from(availableGroups map[string]GroupCandidates) ([]Candidate, error) {
	group := availableGroups[submissionRequirement.From]
	// different rules for 'all' and 'pick'
	switch submissionRequirement.Rule {
	case "all":
		// all means all candidates in the group must be in the submission
		selected := make([]Candidate, 0, len(group.Candidates))
		for _, candidate := range group.Candidates {
			if candidate.VC == nil {
				return nil, fmt.Errorf("submission requirement (%s) does not have all credentials from the group", submissionRequirement.Name)
			}
			selected = append(selected, candidate)
		}
		return selected, nil
	case "pick":
		// pick means we need to pick one or more of the candidates that have a VC
		var sets [][]Candidate
		for _, candidate := range group.Candidates {
			if candidate.VC != nil {
				sets = append(sets, []Candidate{candidate})
			}
		}
		return submissionRequirement.pick(sets)
	default:
		return nil, fmt.Errorf("submission requirement (%s) contains unknown rule (%s)", submissionRequirement.Name, submissionRequirement.Rule)
	}
}

func (submissionRequirement SubmissionRequirement) fromNested(availableGroups map[string]GroupCandidates) ([]Candidate, error) {
	var sets [][]Candidate
	for _, nested := range submissionRequirement.FromNested {
		candidates, err := nested.match(availableGroups)
		if err != nil {
			if submissionRequirement.Rule == "all" {
				// exit early
				return nil, fmt.Errorf("submission requirement (%s) does not have all credentials from nested requirements", submissionRequirement.Name)
			}
			continue
		}
		if len(candidates) > 0 {
			sets = append(sets, candidates)
		}
	}
	switch submissionRequirement.Rule {
	case "all":
		var selected []Candidate
		for _, set := range sets {
			selected = append(selected, set...)
		}
		return selected, nil
	case "pick":
		return submissionRequirement.pick(sets)
	default:
		return nil, fmt.Errorf("submission requirement (%s) contains unknown rule (%s)", submissionRequirement.Name, submissionRequirement.Rule)
	}
}

// pick applies the count, min and max properties of a 'pick' rule to the non-empty candidate sets.
// With count, exactly count sets are picked. Otherwise, as many sets as max allows are picked.
func (submissionRequirement SubmissionRequirement) pick(sets [][]Candidate) ([]Candidate, error) {
	count := len(sets)
	limit := count
	if submissionRequirement.Count != nil {
		if count < *submissionRequirement.Count {
			return nil, fmt.Errorf("submission requirement (%s) has less credentials (%d) than required (%d)", submissionRequirement.Name, count, *submissionRequirement.Count)
		}
		limit = *submissionRequirement.Count
	} else {
		if submissionRequirement.Min != nil && count < *submissionRequirement.Min {
			return nil, fmt.Errorf("submission requirement (%s) has less matches (%d) than minimal required (%d)", submissionRequirement.Name, count, *submissionRequirement.Min)
		}
		if submissionRequirement.Max != nil && *submissionRequirement.Max < limit {
			limit = *submissionRequirement.Max
		}
	}
	selected := make([]Candidate, 0)
	for _, set := range sets[:limit] {
		selected = append(selected, set...)
	}
	return selected, nil
}
