package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoInviteCode joins the seeded demo wedding.
const DemoInviteCode = "DEMO-WEDDING"

// SeedResult lists what SeedTestData created.
type SeedResult struct {
	EventID     string
	OrganizerID string
	GuestIDs    []string
	Matches     int
}

// SeedTestData resets the database and populates it with one demo wedding.
//
// Behavior:
//  1. Clears every table.
//  2. Creates an organizer and an active event with DemoInviteCode.
//  3. Creates 20 guests with complete profiles, all attending.
//  4. Generates ~200 swipes with ~70% likes; every 3rd like is reciprocated.
//  5. Writes a match for every mutual like, so the data obeys the same rules
//     as live swipes.
func SeedTestData(db *gorm.DB) (*SeedResult, error) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	models := All()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return nil, fmt.Errorf("failed to clear %T: %w", models[i], err)
		}
	}
	log.Println("Cleared existing data")

	res := &SeedResult{EventID: uuid.NewString(), OrganizerID: uuid.NewString()}

	if err := seedUser(db, res.OrganizerID, "Organizer", 40); err != nil {
		return nil, err
	}
	if err := db.Create(&Event{
		ID:          res.EventID,
		Name:        "Demo Wedding",
		OrganizerID: res.OrganizerID,
		Status:      EventActive,
		InviteCode:  DemoInviteCode,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to seed event: %w", err)
	}
	if err := db.Create(&UserRole{UserID: res.OrganizerID, Role: RolePremium}).Error; err != nil {
		return nil, fmt.Errorf("failed to seed role: %w", err)
	}

	// --- Seed guests ---
	for i := 1; i <= 20; i++ {
		id := uuid.NewString()
		if err := seedUser(db, id, fmt.Sprintf("Guest %d", i), 21+r.Intn(30)); err != nil {
			return nil, err
		}
		if err := db.Create(&EventAttendee{EventID: res.EventID, UserID: id}).Error; err != nil {
			return nil, fmt.Errorf("failed to seed attendee: %w", err)
		}
		res.GuestIDs = append(res.GuestIDs, id)
	}
	log.Printf("Seeded %d guests.", len(res.GuestIDs))

	// --- Seed swipes (~200) ---
	rights := map[[2]string]bool{}
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}, {Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}
	swipe := func(actor, target string, right bool) error {
		dir := DirectionLeft
		if right {
			dir = DirectionRight
		}
		rights[[2]string{actor, target}] = right
		return db.Clauses(upsert).Create(&Swipe{ActorID: actor, TargetID: target, EventID: res.EventID, Direction: dir}).Error
	}

	counter := 0
	for _, actor := range res.GuestIDs {
		for j := 0; j < 10; j++ {
			target := res.GuestIDs[r.Intn(len(res.GuestIDs))]
			if target == actor {
				continue
			}

			// like probability 70%
			liked := r.Intn(100) < 70

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				liked = true
				if err := swipe(target, actor, true); err != nil {
					return nil, fmt.Errorf("failed to seed swipe: %w", err)
				}
			}
			if err := swipe(actor, target, liked); err != nil {
				return nil, fmt.Errorf("failed to seed swipe: %w", err)
			}
			counter++
		}
	}

	// --- Matches for mutual likes ---
	for pair, right := range rights {
		a, b := pair[0], pair[1]
		if !right || a > b || !rights[[2]string{b, a}] {
			continue
		}
		if err := db.Create(&Match{ID: uuid.NewString(), EventID: res.EventID, UserAID: a, UserBID: b, Status: MatchActive}).Error; err != nil {
			return nil, fmt.Errorf("failed to seed match: %w", err)
		}
		res.Matches++
	}
	log.Printf("Seeded %d swipes and %d matches.", len(rights), res.Matches)

	return res, nil
}

func seedUser(db *gorm.DB, id, name string, age int) error {
	if err := db.Create(&User{ID: id, Email: id + "@example.com"}).Error; err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}
	if err := db.Create(&Profile{
		UserID:        id,
		Name:          name,
		Age:           age,
		Bio:           "Here for the cake.",
		Photos:        []string{"https://picsum.photos/seed/" + id + "/600/800"},
		Interests:     []string{"dancing", "music"},
		Prompts:       []Prompt{{Question: "How do you know the couple?", Answer: "College friends"}},
		NotifyLikes:   true,
		NotifyMatches: true,
		EmailEnabled:  true,
		PushEnabled:   true,
	}).Error; err != nil {
		return fmt.Errorf("failed to seed profile: %w", err)
	}
	return nil
}
