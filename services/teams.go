package services

import (
	"fmt"
	"math"

	"github.com/Sayat07/hacklive-system/models"
)

// Размер команды фиксирован: участники группируются тройками в порядке
// регистрации. Минимум шесть слотов в ростере для случайного выбора.
const (
	teamSize     = 3
	minTeamCount = 6
)

// TeamIndexForRank выводит 1-базный номер команды из 0-базного ранга
// регистрации: floor(rank/3) + 1.
func TeamIndexForRank(registrationRank int) int {
	return registrationRank/teamSize + 1
}

// TeamNameForIndex форматирует каноническое имя команды ("Team 1", "Team 2"...).
func TeamNameForIndex(index int) string {
	return fmt.Sprintf("Team %d", index)
}

// RosterTeamCount — размер ростера для случайного выбора:
// max(ceil(participantCount/3), 6).
func RosterTeamCount(participantCount int) int {
	count := int(math.Ceil(float64(participantCount) / float64(teamSize)))
	if count < minTeamCount {
		count = minTeamCount
	}
	return count
}

// ResolveTeamName выводит имя команды участника из снапшота участников,
// упорядоченного по registered_at ASC. Команда нигде не хранится и не
// кэшируется: оба места использования (проверка самоголосования и случайный
// выбор) обязаны считать её из одного и того же свежего снапшота.
func ResolveTeamName(participants []*models.Participant, userID int) (string, error) {
	for rank, p := range participants {
		if p.UserID == userID {
			return TeamNameForIndex(TeamIndexForRank(rank)), nil
		}
	}
	return "", ErrNotRegistered
}

// BuildTeams группирует снапшот участников в производные команды.
func BuildTeams(participants []*models.Participant, presented []string) []models.Team {
	presentedSet := make(map[string]bool, len(presented))
	for _, name := range presented {
		presentedSet[name] = true
	}

	teams := make([]models.Team, 0)
	for rank, p := range participants {
		idx := TeamIndexForRank(rank)
		if idx > len(teams) {
			name := TeamNameForIndex(idx)
			teams = append(teams, models.Team{
				Name:      name,
				Index:     idx,
				Members:   make([]int, 0, teamSize),
				Presented: presentedSet[name],
			})
		}
		teams[idx-1].Members = append(teams[idx-1].Members, p.UserID)
	}
	return teams
}

// rosterTeamNames возвращает полный список имён команд ростера,
// включая пустые слоты до минимума.
func rosterTeamNames(participantCount int) []string {
	count := RosterTeamCount(participantCount)
	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		names = append(names, TeamNameForIndex(i))
	}
	return names
}

// remainingTeams вычитает уже выступившие команды из ростера.
func remainingTeams(participantCount int, presented []string) []string {
	presentedSet := make(map[string]bool, len(presented))
	for _, name := range presented {
		presentedSet[name] = true
	}

	remaining := make([]string, 0)
	for _, name := range rosterTeamNames(participantCount) {
		if !presentedSet[name] {
			remaining = append(remaining, name)
		}
	}
	return remaining
}
