package service

import (
	"context"
	"encoding/json"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/novafit/nutriparse/backend/internal/connector"
	"github.com/novafit/nutriparse/backend/internal/models"
	"github.com/novafit/nutriparse/backend/internal/types"
)

const (
	aggregatorMaxResults    = 5
	aggregatorCacheTTL      = 10 * time.Minute
	aggregatorDedupCutoff   = 92
	aggregatorLocalMatchMin = 70
)

// knownBrandTokens marks a query as brand-intent when any token matches.
var knownBrandTokens = map[string]struct{}{
	"coca":      {},
	"coca-cola": {},
	"pepsi":     {},
	"nestle":    {},
	"danone":    {},
	"kellogg":   {},
	"bimbo":     {},
	"lays":      {},
	"lay's":     {},
	"gatorade":  {},
	"monster":   {},
	"redbull":   {},
}

var barcodePattern = regexp.MustCompile(`^\d{9,}$`)

// AggregatorService fans a food query out to all configured providers and
// merges their candidates into one confidence-ranked list.
type AggregatorService struct {
	connectors []connector.Connector
	db         *gorm.DB
	redis      *redis.Client
}

var _ IAggregatorService = (*AggregatorService)(nil)

// NewAggregatorService creates an aggregator over the given providers. db and
// redisClient are optional; without them local-match rescoring and response
// caching are skipped.
func NewAggregatorService(connectors []connector.Connector, db *gorm.DB, redisClient *redis.Client) *AggregatorService {
	return &AggregatorService{connectors: connectors, db: db, redis: redisClient}
}

// Search merges provider results for a query, rescored and capped. It never
// returns an error: with every provider down the result is simply empty.
func (s *AggregatorService) Search(ctx context.Context, query string) []types.NormalizedFood {
	normalizedQuery := strings.ToLower(strings.TrimSpace(query))
	if normalizedQuery == "" {
		return nil
	}

	if cached, ok := s.cachedResults(ctx, normalizedQuery); ok {
		return cached
	}

	candidates := s.fanOut(ctx, query)
	if len(candidates) == 0 {
		return nil
	}

	results := s.rank(ctx, normalizedQuery, candidates)
	s.storeResults(ctx, normalizedQuery, results)
	return results
}

func (s *AggregatorService) fanOut(ctx context.Context, query string) []types.NormalizedFood {
	var (
		mu         sync.Mutex
		candidates []types.NormalizedFood
		wg         sync.WaitGroup
	)

	for _, conn := range s.connectors {
		wg.Add(1)
		go func(conn connector.Connector) {
			defer wg.Done()
			start := time.Now()
			results := conn.Search(ctx, query)
			log.Printf("provider %s returned %d results in %s", conn.SourceName(), len(results), time.Since(start))

			mu.Lock()
			candidates = append(candidates, results...)
			mu.Unlock()
		}(conn)
	}
	wg.Wait()
	return candidates
}

// rank applies query-intent and data-quality rescoring, deduplicates near
// identical candidates, and orders the survivors.
func (s *AggregatorService) rank(ctx context.Context, normalizedQuery string, candidates []types.NormalizedFood) []types.NormalizedFood {
	isBarcode := barcodePattern.MatchString(normalizedQuery)
	isBrand := isBarcode || looksLikeBrandQuery(normalizedQuery)
	localNames := s.recentEntryNames(ctx)

	rescored := make([]types.NormalizedFood, 0, len(candidates))
	for _, candidate := range candidates {
		score := candidate.ConfidenceScore

		if isBarcode {
			if candidate.Source == "openfoodfacts" {
				score += 0.10
			} else {
				score -= 0.04
			}
		} else if !isBrand {
			switch candidate.Source {
			case "usda":
				score += 0.08
			case "openfoodfacts":
				score -= 0.03
			}
		}

		if matchesLocalEntry(normalizedQuery, candidate.Name, localNames) {
			score += 0.05
		}
		if candidate.FiberPer100g == nil {
			score -= 0.05
		}
		if candidate.ProteinPer100g == 0 && candidate.FatPer100g == 0 && candidate.CarbsPer100g == 0 {
			score -= 0.05
		}

		candidate.ConfidenceScore = connector.ClampConfidence(score)
		rescored = append(rescored, candidate)
	}

	deduped := dedupeCandidates(rescored)

	sort.SliceStable(deduped, func(i, j int) bool {
		if isBarcode {
			iOFF := deduped[i].Source == "openfoodfacts"
			jOFF := deduped[j].Source == "openfoodfacts"
			if iOFF != jOFF {
				return iOFF
			}
		}
		return deduped[i].ConfidenceScore > deduped[j].ConfidenceScore
	})

	if len(deduped) > aggregatorMaxResults {
		deduped = deduped[:aggregatorMaxResults]
	}
	return deduped
}

func looksLikeBrandQuery(normalizedQuery string) bool {
	for _, token := range strings.Fields(normalizedQuery) {
		if _, ok := knownBrandTokens[token]; ok {
			return true
		}
		if hasDigit(token) && hasLetter(token) {
			return true
		}
	}
	return false
}

func hasDigit(token string) bool {
	for _, r := range token {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func hasLetter(token string) bool {
	for _, r := range token {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}

// recentEntryNames pulls recently logged normalized names for the
// previously-eaten rescoring signal.
func (s *AggregatorService) recentEntryNames(ctx context.Context) []string {
	if s.db == nil {
		return nil
	}
	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.FoodEntry{}).
		Order("created_at DESC").
		Limit(50).
		Distinct().
		Pluck("normalized_name", &names).Error
	if err != nil {
		log.Printf("failed to load recent entry names: %v", err)
		return nil
	}
	return names
}

func matchesLocalEntry(normalizedQuery, candidateName string, localNames []string) bool {
	loweredCandidate := strings.ToLower(candidateName)
	for _, name := range localNames {
		lowered := strings.ToLower(name)
		if strings.Contains(loweredCandidate, lowered) || strings.Contains(normalizedQuery, lowered) {
			if fuzzy.TokenSetRatio(lowered, loweredCandidate) >= aggregatorLocalMatchMin {
				return true
			}
		}
	}
	return false
}

// dedupeCandidates drops near-duplicate candidates, keeping the highest
// confidence one per cluster.
func dedupeCandidates(candidates []types.NormalizedFood) []types.NormalizedFood {
	sorted := make([]types.NormalizedFood, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ConfidenceScore > sorted[j].ConfidenceScore
	})

	var kept []types.NormalizedFood
	for _, candidate := range sorted {
		key := strings.ToLower(strings.TrimSpace(candidate.Name + " " + candidate.Brand))
		duplicate := false
		for _, existing := range kept {
			existingKey := strings.ToLower(strings.TrimSpace(existing.Name + " " + existing.Brand))
			if fuzzy.TokenSetRatio(key, existingKey) >= aggregatorDedupCutoff {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func (s *AggregatorService) cacheKey(normalizedQuery string) string {
	return "food_search:" + normalizedQuery
}

func (s *AggregatorService) cachedResults(ctx context.Context, normalizedQuery string) ([]types.NormalizedFood, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, s.cacheKey(normalizedQuery)).Result()
	if err != nil {
		return nil, false
	}
	var results []types.NormalizedFood
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false
	}
	return results, true
}

func (s *AggregatorService) storeResults(ctx context.Context, normalizedQuery string, results []types.NormalizedFood) {
	if s.redis == nil || len(results) == 0 {
		return
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(normalizedQuery), raw, aggregatorCacheTTL).Err(); err != nil {
		log.Printf("failed to cache search results: %v", err)
	}
}
