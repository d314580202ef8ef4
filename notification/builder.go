package notification

import (
	"fmt"
	"strings"

	"github.com/Brotsalat/zkill-ws-slack/killmail"
	"github.com/Brotsalat/zkill-ws-slack/reference"
	"github.com/dustin/go-humanize"
)

const (
	zkillboardUrl  = "https://zkillboard.com"
	imageServerUrl = "https://imageserver.eveonline.com"
)

// Input is everything Build needs to describe one kill.
type Input struct {
	Killmail   *killmail.Killmail
	TotalValue float64
	Facts      killmail.Facts
	Location   *reference.Location
	Watched    killmail.EntityRef
}

// Build composes the notification for in. It has no side effects, so equal inputs yield equal payloads.
func Build(in Input) Payload {
	km := in.Killmail
	victim := km.Victim

	color := Good
	if victim.Ref(in.Watched.Kind).Equal(in.Watched) {
		color = Danger
	}

	title := fmt.Sprintf("%s was killed by %s (%s)", victim.DisplayName(), in.Facts.Killer.DisplayName(), km.KillTime)

	return Payload{
		Color:     color,
		Title:     title,
		Fallback:  title,
		Link:      fmt.Sprintf("%s/kill/%d/", zkillboardUrl, km.KillID),
		Thumbnail: fmt.Sprintf("%s/Render/%d_64.png", imageServerUrl, victim.ShipType.ID),
		Fields: []Field{
			{Title: "Ship", Value: victim.ShipType.Name, Short: true},
			{Title: "Value", Value: formatISK(in.TotalValue), Short: true},
			{Title: "Attackers", Value: attackers(in.Facts.Count, victim.DamageTaken), Short: true},
			{Title: "Most Damage", Value: mostDamage(in.Facts.TopDealer), Short: true},
			{Title: "Location", Value: location(in.Location), Short: false},
		},
	}
}

func formatISK(value float64) string {
	return humanize.FormatFloat("#,###.##", value) + " ISK"
}

func attackers(count int, damageTaken int64) string {
	noun := "pilot"
	if count > 1 {
		noun = "pilots"
	}

	return fmt.Sprintf("%d %s (%s Damage)", count, noun, humanize.Comma(damageTaken))
}

func mostDamage(dealer killmail.Attacker) string {
	name := dealer.DisplayName()
	if id := dealer.CharacterID(); id != 0 {
		name = zkillLink("character", id, name)
	}

	return fmt.Sprintf("%s (%s Damage)", name, humanize.Comma(dealer.DamageDone))
}

func location(loc *reference.Location) string {
	parts := []string{
		fmt.Sprintf("%s (%.1f)", zkillLink("system", loc.System.ID, loc.System.Name), loc.System.SecurityStatus),
		zkillLink("constellation", loc.Constellation.ID, loc.Constellation.Name),
		zkillLink("region", loc.Region.ID, loc.Region.Name),
	}

	return strings.Join(parts, " < ")
}

// zkillLink links text to the zKillboard page of the given kind, or returns it unchanged if id is unknown.
func zkillLink(kind string, id int64, text string) string {
	if id == 0 {
		return text
	}

	return fmt.Sprintf("<%s/%s/%d|%s>", zkillboardUrl, kind, id, text)
}
