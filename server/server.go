package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/denysvitali/haystack-go"
	"github.com/denysvitali/haystack-go/model"
	"github.com/denysvitali/haystack-go/report"
	"github.com/denysvitali/haystack-go/server/models"
	"github.com/denysvitali/haystack-go/server/responses"
)

var logger = logrus.StandardLogger().WithField("pkg", "server")

type Options struct {
	Driver       string
	DSN          string
	Workers      int
	RefreshHours int
}

type Server struct {
	opts   Options
	db     *gorm.DB
	e      *gin.Engine
	c      *haystack.Client
	keyMap map[string]model.MainKey
	now    func() time.Time
}

func New(c *haystack.Client, keys []model.MainKey, opts Options) (*Server, error) {
	if opts.RefreshHours < 1 {
		opts.RefreshHours = 12
	}
	s := Server{
		opts:   opts,
		e:      gin.New(),
		c:      c,
		keyMap: map[string]model.MainKey{},
		now:    time.Now,
	}
	for _, k := range keys {
		if _, ok := s.keyMap[k.ID()]; ok {
			return nil, fmt.Errorf("duplicate key id %s", k.ID())
		}
		s.keyMap[k.ID()] = k
	}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("unable to init server: %w", err)
	}
	return &s, nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Listen(addr ...string) error {
	logger.Infof("listening on %s", addr)
	return s.e.Run(addr...)
}

func (s *Server) init() error {
	var errArr []error
	errArr = append(errArr, s.initDB())
	s.e.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPut},
		AllowHeaders:    []string{"Origin", "Content-Type"},
	}))
	s.e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1 := s.e.Group("/api/v1")
	v1.GET("/keys", s.getKeys)
	v1.GET("/keys/:keyId", s.getLastLocation)
	v1.GET("/keys/:keyId/refresh", s.refreshLocation)
	v1.GET("/keys/:keyId/history", s.getLocationHistory)
	v1.PUT("/keys/:keyId/alias", s.setAlias)
	v1.PUT("/keys/:keyId/lost", s.setLostAt)
	return errors.Join(errArr...)
}

func dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "":
		return postgres.New(postgres.Config{
			DSN:        dsn,
			DriverName: "postgres",
		}), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Server) initDB() error {
	dia, err := dialector(s.opts.Driver, s.opts.DSN)
	if err != nil {
		return err
	}
	db, err := gorm.Open(dia, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	m := []any{
		&models.KeyInfo{},
		&models.KeyAlias{},
		&models.Location{},
	}
	for _, m := range m {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("failed to migrate model: %w", err)
		}
	}
	s.db = db
	return nil
}

func (s *Server) getKeys(c *gin.Context) {
	ctx := c.Request.Context()
	keys := maps.Keys(s.keyMap)

	var keyInfos []models.KeyInfo
	tx := s.db.WithContext(ctx).Preload("Alias").Where("id IN ?", keys).Find(&keyInfos)
	if tx.Error != nil {
		logger.Errorf("unable to fetch key infos: %v", tx.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to fetch key infos"})
		return
	}
	keyInfoMap := make(map[string]models.KeyInfo)
	for _, k := range keyInfos {
		keyInfoMap[k.ID] = k
	}

	res := make([]responses.Key, 0, len(keys))
	for _, k := range keys {
		key := responses.Key{
			ID:      cleanedKeyID(k),
			Type:    s.keyMap[k].Type(),
			KeyInfo: s.keyMap[k].KeyInfo(),
		}
		if ki, ok := keyInfoMap[k]; ok {
			key.LostAt = ki.LostAt
			if ki.Alias != nil {
				key.Alias = ki.Alias.Alias
			}
		}
		lastLocation, err := s.getLastLocationByID(ctx, k)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warnf("unable to get last location: %v", err)
		}
		key.LastLocation = lastLocation
		res = append(res, key)
	}

	sort.Sort(responses.ByKeyID(res))

	c.JSON(http.StatusOK, res)
}

func cleanedKeyID(key string) string {
	// Replaces / with another non-base64 character
	return strings.ReplaceAll(key, "/", "-")
}

func dirtyKeyID(key string) string {
	// Replaces - with /
	return strings.ReplaceAll(key, "-", "/")
}

func (s *Server) keyFromParam(c *gin.Context) (model.MainKey, bool) {
	key, ok := s.keyMap[dirtyKeyID(c.Param("keyId"))]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "key not found"})
	}
	return key, ok
}

func (s *Server) getLocationHistory(c *gin.Context) {
	key, ok := s.keyFromParam(c)
	if !ok {
		return
	}
	from, err := timeParam(c, "from", time.Time{})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := timeParam(c, "to", s.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	locations, err := s.getLocationBetweenInterval(c.Request.Context(), from, to, key)
	if err != nil {
		logger.Errorf("unable to get location history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to get location history"})
		return
	}
	c.JSON(http.StatusOK, locations)
}

func timeParam(c *gin.Context, name string, def time.Time) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return def.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return t.UTC(), nil
}

func (s *Server) getLocationBetweenInterval(ctx context.Context, startTime time.Time, endTime time.Time, key model.MainKey) ([]models.LocationResult, error) {
	var locations []models.Location
	tx := s.db.
		WithContext(ctx).
		Order("found_at asc").
		Find(&locations, "key_id = ? AND found_at BETWEEN ? AND ?", key.ID(), startTime, endTime)
	if tx.Error != nil {
		return nil, fmt.Errorf("unable to fetch locations: %w", tx.Error)
	}
	res := make([]models.LocationResult, 0, len(locations))
	for _, l := range locations {
		res = append(res, l.Result())
	}
	return res, nil
}

// getLocation fetches and stores the reports published for key in the last
// amountHours hours, or since the key was marked lost if that is later.
func (s *Server) getLocation(ctx context.Context, amountHours int, key model.MainKey) ([]Location, responses.Refresh, error) {
	to := s.now().UTC()
	from := to.Add(-time.Duration(amountHours) * time.Hour)
	if lostAt := s.getLostAt(ctx, key); lostAt != nil && lostAt.After(from) && lostAt.Before(to) {
		from = lostAt.UTC()
	}

	started := time.Now()
	reports, subKeysMap, err := s.c.Find(ctx, []model.MainKey{key}, from, to)
	status := "ok"
	if err != nil {
		status = "error"
	}
	fetchDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
	summary := responses.Refresh{From: from, To: to, Reports: len(reports)}
	if err != nil {
		return nil, summary, err
	}
	logger.Debugf("fetched %d reports for %s between %s and %s", len(reports), key.ID(), from, to)

	locations := make([]Location, 0, len(reports))
	for _, d := range haystack.DecodeReports(ctx, reports, subKeysMap, s.opts.Workers) {
		decryptOutcomes.WithLabelValues(report.Classify(d.Err)).Inc()
		if d.Err != nil {
			summary.Failures++
			continue
		}
		if err := s.storeLocation(ctx, d); err != nil {
			logger.Errorf("unable to insert location: %v", err)
			continue
		}
		locations = append(locations, Location{
			PublishedAt: d.Report.PublishedAt(),
			KeyType:     d.SubKey.Type.String(),
			TagData:     *d.Location,
		})
	}
	return locations, summary, nil
}

func (s *Server) storeLocation(ctx context.Context, d haystack.Decoded) error {
	dbPoint, err := models.NewGeomPoint(d.Location.Lat, d.Location.Lng)
	if err != nil {
		return fmt.Errorf("unable to create point: %w", err)
	}
	blob, err := d.Report.Blob()
	if err != nil {
		return err
	}
	tx := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Location{
			ReportedAt:      d.Report.PublishedAt(),
			FoundAt:         d.Location.Time.UTC(),
			KeyID:           d.SubKey.MainKey.ID(),
			CurrentKeyID:    d.SubKey.ID.String(),
			KeyType:         d.SubKey.Type.String(),
			OriginalContent: blob,
			Geometry:        dbPoint,
			Accuracy:        d.Location.Accuracy,
			Confidence:      d.Location.Confidence,
			Status:          d.Location.Status,
		})
	if tx.Error != nil {
		return tx.Error
	}
	storedLocations.Add(float64(tx.RowsAffected))
	return nil
}

func (s *Server) refreshLocation(c *gin.Context) {
	amountHoursInt := s.opts.RefreshHours
	if amountHours := c.Query("amountHours"); amountHours != "" {
		var err error
		amountHoursInt, err = strconv.Atoi(amountHours)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amountHours must be an integer"})
			return
		}
	}

	if amountHoursInt < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amountHours must be greater than 0"})
		return
	}

	key, ok := s.keyFromParam(c)
	if !ok {
		return
	}
	logger.Infof("Refreshing location for %q", key.ID())

	tagData, summary, err := s.getLocation(c.Request.Context(), amountHoursInt, key)
	if err != nil {
		logger.Errorf("unable to get location: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	sort.Sort(byTime(tagData))
	c.JSON(http.StatusOK, refreshResponse{Refresh: summary, TagData: tagData})
}

func (s *Server) getLastLocation(c *gin.Context) {
	key, ok := s.keyFromParam(c)
	if !ok {
		return
	}

	locationRes, err := s.getLastLocationByID(c.Request.Context(), key.ID())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location for key"})
		return
	}
	if err != nil {
		logger.Errorf("unable to get last location: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to get last location"})
		return
	}
	c.JSON(http.StatusOK, locationRes)
}

func (s *Server) getLastLocationByID(ctx context.Context, keyID string) (*models.LocationResult, error) {
	var location models.Location
	tx := s.db.
		WithContext(ctx).
		Where("key_id = ?", keyID).
		Order("found_at desc").
		First(&location)
	if tx.Error != nil {
		return nil, fmt.Errorf("unable to fetch location: %w", tx.Error)
	}
	res := location.Result()
	return &res, nil
}

func (s *Server) ensureKeyInfo(ctx context.Context, keyID string) error {
	return s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.KeyInfo{ID: keyID}).Error
}

type aliasRequest struct {
	Alias string `json:"alias" binding:"max=64"`
}

func (s *Server) setAlias(c *gin.Context) {
	key, ok := s.keyFromParam(c)
	if !ok {
		return
	}
	var req aliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := s.ensureKeyInfo(ctx, key.ID()); err != nil {
		logger.Errorf("unable to create key info: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store alias"})
		return
	}
	alias := models.KeyAlias{KeyID: key.ID(), Alias: req.Alias}
	tx := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"alias"}),
		}).
		Create(&alias)
	if tx.Error != nil {
		logger.Errorf("unable to store alias: %v", tx.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store alias"})
		return
	}
	c.JSON(http.StatusOK, alias)
}

type lostRequest struct {
	LostAt *time.Time `json:"lostAt"`
}

func (s *Server) setLostAt(c *gin.Context) {
	key, ok := s.keyFromParam(c)
	if !ok {
		return
	}
	var req lostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LostAt != nil {
		t := req.LostAt.UTC()
		req.LostAt = &t
	}
	ctx := c.Request.Context()
	if err := s.ensureKeyInfo(ctx, key.ID()); err != nil {
		logger.Errorf("unable to create key info: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store lost date"})
		return
	}
	tx := s.db.
		WithContext(ctx).
		Model(&models.KeyInfo{ID: key.ID()}).
		Update("lost_at", req.LostAt)
	if tx.Error != nil {
		logger.Errorf("unable to store lost date: %v", tx.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to store lost date"})
		return
	}
	c.JSON(http.StatusOK, models.KeyInfo{ID: key.ID(), LostAt: req.LostAt})
}

func (s *Server) getLostAt(ctx context.Context, key model.MainKey) *time.Time {
	var k models.KeyInfo
	tx := s.db.
		WithContext(ctx).
		Model(&models.KeyInfo{}).
		Where("id = ?", key.ID()).First(&k)
	if tx.Error != nil {
		if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			logger.Errorf("unable to fetch key info: %v", tx.Error)
		}
		return nil
	}
	return k.LostAt
}
