package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/archiprisma/memberops/app/models"
	"github.com/archiprisma/memberops/internal/pkg/cache"
	"github.com/archiprisma/memberops/internal/pkg/database"
)

const (
	CacheKeyLeadsTotal     = "statistics:leads:total"
	CacheKeyLeadsDaily     = "statistics:leads:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyReferralsTotal = "statistics:referrals:total"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData holds the funnel numbers shown on the public stats
// endpoint alongside the paying member count.
type StatisticsData struct {
	TodayLeads     int
	TotalLeads     int
	TotalReferrals int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached numbers are older than the
// refresh interval.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has passed.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("[statistics] cache refresh failed: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recounts leads and referrals and stores the
// results in the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalLeads int64
	if err := db.Model(&models.Lead{}).Count(&totalLeads).Error; err != nil {
		log.Printf("[statistics] counting total leads failed: %v", err)
		return err
	}

	var todayLeads int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Lead{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayLeads).Error; err != nil {
		log.Printf("[statistics] counting today's leads failed: %v", err)
		return err
	}

	var totalReferrals int64
	if err := db.Model(&models.ReferralCode{}).Select("COALESCE(SUM(referrals), 0)").Scan(&totalReferrals).Error; err != nil {
		log.Printf("[statistics] counting referrals failed: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyLeadsTotal, strconv.FormatInt(totalLeads, 10), CacheExpiration); err != nil {
		log.Printf("[statistics] caching total leads failed: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyLeadsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayLeads, 10), CacheExpiration); err != nil {
		log.Printf("[statistics] caching today's leads failed: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyReferralsTotal, strconv.FormatInt(totalReferrals, 10), CacheExpiration); err != nil {
		log.Printf("[statistics] caching referrals failed: %v", err)
		return err
	}

	return nil
}

// GetTotalLeads returns the lead count from cache, falling back to the
// database.
func GetTotalLeads() int {
	val, err := cache.Get(CacheKeyLeadsTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.Lead{}).Count(&count).Error; err != nil {
			log.Printf("[statistics] counting total leads failed: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyLeadsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("[statistics] caching total leads failed: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayLeads returns how many leads signed up today.
func GetTodayLeads() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyLeadsDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		var count int64
		db := database.GetDB()
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		if err := db.Model(&models.Lead{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error; err != nil {
			log.Printf("[statistics] counting today's leads failed: %v", err)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("[statistics] caching today's leads failed: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTotalReferrals returns the number of completed referrals across all
// codes.
func GetTotalReferrals() int {
	val, err := cache.Get(CacheKeyReferralsTotal)
	if err != nil {
		var count int64
		db := database.GetDB()
		if err := db.Model(&models.ReferralCode{}).Select("COALESCE(SUM(referrals), 0)").Scan(&count).Error; err != nil {
			log.Printf("[statistics] counting referrals failed: %v", err)
			return 0
		}

		if err := cache.Set(CacheKeyReferralsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("[statistics] caching referrals failed: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData refreshes the cache if stale and returns all funnel
// numbers.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayLeads:     GetTodayLeads(),
		TotalLeads:     GetTotalLeads(),
		TotalReferrals: GetTotalReferrals(),
	}
}
