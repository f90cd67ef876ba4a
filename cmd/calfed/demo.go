package main

import (
	"time"

	"github.com/guilherme-santos/calfed/internal"
	"github.com/guilherme-santos/calfed/internal/remotetest"
)

const (
	demoHost     = "demo.calfed.test"
	demoShareURL = "https://" + demoHost + "/share/team"
	demoPassword = "demo"
)

// newDemoTenant seeds an in-memory tenant with a few folders, events and
// busy slots. Ids are fixed so accounts stored by one run keep working in the
// next.
func newDemoTenant() *remotetest.Tenant {
	tenant := remotetest.NewTenant()
	tenant.AddShare(demoShareURL, demoPassword)

	alice := internal.CalendarUser{URI: "mailto:alice@" + demoHost, CN: "Alice", Email: "alice@" + demoHost, Entity: 7}
	bob := internal.CalendarUser{URI: "mailto:bob@" + demoHost, CN: "Bob", Email: "bob@" + demoHost, Entity: 8}
	tenant.AddUser(alice.Entity, alice.Email)
	tenant.AddUser(bob.Entity, bob.Email)

	tenant.AddFolder(internal.Folder{
		ID:          "team",
		ParentID:    internal.SharedRootID,
		Name:        "Team",
		CreatedBy:   &alice,
		Permissions: []internal.Permission{{Entity: alice.Entity, Bits: internal.PermOwnAll}},
	})
	tenant.AddFolder(internal.Folder{ID: "releases", ParentID: "team", Name: "Releases", CreatedBy: &bob})
	tenant.AddFolder(internal.Folder{ID: "holidays", ParentID: internal.PublicRootID, Name: "Holidays"})

	today := internal.Today().Time
	tenant.AddEvent(internal.Event{
		ID:             "standup",
		UID:            "standup@" + demoHost,
		FolderID:       "team",
		Summary:        "Standup",
		StartsAt:       today.Add(9 * time.Hour),
		EndsAt:         today.Add(9*time.Hour + 15*time.Minute),
		RecurrenceRule: "FREQ=DAILY",
		Organizer:      &alice,
		Attendees: []internal.Attendee{
			{CalendarUser: alice, CUType: internal.CUTypeIndividual, PartStat: internal.Accepted},
			{CalendarUser: bob, CUType: internal.CUTypeIndividual, PartStat: internal.NeedsAction},
		},
	})
	tenant.AddEvent(internal.Event{
		ID:        "release",
		UID:       "release@" + demoHost,
		FolderID:  "releases",
		Summary:   "Release",
		StartsAt:  today.AddDate(0, 0, 2).Add(14 * time.Hour),
		EndsAt:    today.AddDate(0, 0, 2).Add(15 * time.Hour),
		Organizer: &bob,
	})
	tenant.SetFreeBusy(alice.Email, internal.FreeBusyTime{
		StartsAt: today.Add(9 * time.Hour),
		EndsAt:   today.Add(9*time.Hour + 15*time.Minute),
		Type:     internal.FbBusy,
	})
	return tenant
}
