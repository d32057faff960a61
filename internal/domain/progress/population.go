package progress

import "sort"

// EnrollmentRow is a registration row as listed for the whole term.
type EnrollmentRow struct {
	StudentID string
	Registration
}

// Member is one student selected for messaging, with registrations in pace order.
type Member struct {
	StudentID     string
	Registrations []Registration
	// CurrentIndex is the first registration not yet completed.
	CurrentIndex int
}

// Pace is the number of courses the student carries.
func (m Member) Pace() int {
	return len(m.Registrations)
}

// Current returns the registration the student is working on.
func (m Member) Current() Registration {
	return m.Registrations[m.CurrentIndex]
}

// BuildPopulation groups term registrations by student. Forfeited
// registrations and courses outside the sequence are dropped, duplicates of a
// course keep the first row seen, and students with nothing left to work on
// are omitted. Output is ordered by student ID.
func BuildPopulation(rows []EnrollmentRow) []Member {
	byStudent := make(map[string][]Registration)
	seen := make(map[string]map[CourseID]bool)

	for _, row := range rows {
		if row.OpenStatus == OpenStatusForfeit || !row.Course.IsKnown() {
			continue
		}
		if seen[row.StudentID] == nil {
			seen[row.StudentID] = make(map[CourseID]bool)
		}
		if seen[row.StudentID][row.Course] {
			continue
		}
		seen[row.StudentID][row.Course] = true
		byStudent[row.StudentID] = append(byStudent[row.StudentID], row.Registration)
	}

	members := make([]Member, 0, len(byStudent))
	for id, regs := range byStudent {
		sort.SliceStable(regs, func(i, j int) bool {
			return regs[i].PaceOrder < regs[j].PaceOrder
		})

		current := -1
		for i, r := range regs {
			if !r.Completed {
				current = i
				break
			}
		}
		if current < 0 {
			continue
		}

		members = append(members, Member{StudentID: id, Registrations: regs, CurrentIndex: current})
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].StudentID < members[j].StudentID
	})
	return members
}
