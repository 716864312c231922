package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"hireLens/internal/config"
	"hireLens/internal/database"
	"hireLens/internal/tasks"
)

// 运维工具：把长期停留在 processing 状态（score 为 NULL）的候选人重新入队。
// 派发失败不会回滚候选人记录，这个扫描是文档化的恢复通道。
func main() {
	var (
		age       = flag.Duration("age", 30*time.Minute, "仅处理创建时间早于该时长的未打分候选人")
		limit     = flag.Int("limit", 200, "单次最多重新入队的数量")
		dryRun    = flag.Bool("dry-run", false, "只列出将被重新入队的候选人，不实际入队")
		redisAddr = flag.String("redis-addr", "", "Redis 地址（可选，默认读 REDIS_HOST/REDIS_PORT）")
		dbHost    = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort    = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName    = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser    = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass    = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode   = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	cutoff := time.Now().Add(-*age)
	var stuck []database.Candidate
	if err := db.
		Where("score IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(*limit).
		Find(&stuck).Error; err != nil {
		log.Fatalf("query stuck candidates: %v", err)
	}

	if len(stuck) == 0 {
		fmt.Println("没有需要重新入队的候选人。")
		return
	}

	if *dryRun {
		for _, candidate := range stuck {
			fmt.Printf("candidate %d (job %d, file %s, created %s)\n",
				candidate.ID, candidate.JobID, candidate.Filename,
				candidate.CreatedAt.Format(time.RFC3339),
			)
		}
		fmt.Printf("dry-run：共 %d 个候选人待重新入队。\n", len(stuck))
		return
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: resolveRedisAddr(*redisAddr)})
	defer client.Close()

	requeued := 0
	for _, candidate := range stuck {
		task, err := tasks.NewResumeProcessTask(candidate.ID, "")
		if err != nil {
			log.Printf("build task for candidate %d: %v", candidate.ID, err)
			continue
		}
		if _, err := client.Enqueue(task, asynq.MaxRetry(5)); err != nil {
			log.Printf("enqueue candidate %d: %v", candidate.ID, err)
			continue
		}
		requeued++
	}

	fmt.Printf("已重新入队 %d/%d 个候选人。\n", requeued, len(stuck))
}

func resolveRedisAddr(addr string) string {
	if strings.TrimSpace(addr) != "" {
		return addr
	}

	host := strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("REDIS_PORT"))
	if port == "" {
		port = "6379"
	}
	return host + ":" + port
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
