package gateway

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/dinofi/godino/internal/auction"
	"github.com/dinofi/godino/internal/chain"
	"github.com/dinofi/godino/internal/events"
	"github.com/dinofi/godino/internal/offering"
	"github.com/dinofi/godino/internal/registry"
)

// Config 网关配置
type Config struct {
	DBPath string // sqlite 审计库路径；为空则不落审计
}

// Server 运营网关：对协议状态提供只读查询与操作入口，
// 并把事件日志持续写入 sqlite 审计库。
type Server struct {
	cfg Config
	db  *sql.DB

	chain   *chain.Chain
	mapper  *registry.Mapper
	engine  *auction.Engine
	book    *offering.Book
	journal *events.Journal

	bgCancel func()
	bgWG     sync.WaitGroup
}

// New 创建网关
func New(cfg Config, c *chain.Chain, m *registry.Mapper, e *auction.Engine, b *offering.Book, j *events.Journal) (*Server, error) {
	if c == nil || m == nil || e == nil {
		return nil, errors.New("gateway: chain/mapper/engine are required")
	}

	s := &Server{
		cfg:     cfg,
		chain:   c,
		mapper:  m,
		engine:  e,
		book:    b,
		journal: j,
	}

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := sql.Open("sqlite", cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite：单连接更稳定
		db.SetMaxIdleConns(1)
		s.db = db
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s.startAudit()
	return s, nil
}

// Close 停止后台审计并关闭数据库
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgWG.Wait()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Router 构建 HTTP 路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")

	api.GET("/params", s.handleParams)
	api.GET("/block", s.handleBlock)
	api.POST("/block/advance", s.handleAdvanceBlock)

	api.GET("/positions", s.handlePositionsList)
	api.GET("/positions/:token", s.handlePositionGet)
	api.POST("/positions", s.handleRegister)
	api.POST("/positions/:token/exit", s.handleExit)

	api.GET("/lots", s.handleLotsList)
	api.GET("/lots/:lotID", s.handleLotGet)
	api.POST("/lots", s.handleLotCreate)
	api.POST("/lots/:lotID/bid", s.handleBid)
	api.POST("/lots/:lotID/claim", s.handleClaim)

	api.GET("/tokens/:token/balances/:account", s.handleBalance)
	api.GET("/tokens/:token/supply", s.handleSupply)
	api.POST("/tokens/:token/transfer", s.handleTransfer)
	api.POST("/tokens/:token/approve", s.handleApprove)

	api.GET("/offerings/:token", s.handleOfferingGet)
	api.POST("/offerings/:token/deposit", s.handleOfferingDeposit)
	api.POST("/offerings/:token/withdraw", s.handleOfferingWithdraw)
	api.POST("/offerings/:token/claim", s.handleOfferingClaim)

	api.GET("/events", s.handleEventsRecent)

	r.GET("/ws", s.handleWS)

	return r
}
