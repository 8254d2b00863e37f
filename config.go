package mealmind

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	MaxToolIterations  int    `env:"MAX_TOOL_ITERATIONS,default=3"`
	MaxTurnIterations  int    `env:"MAX_TURN_ITERATIONS,default=25"`
	HistoryWindow      int    `env:"HISTORY_WINDOW,default=5"`
	ModelTimeoutSec    int    `env:"MODEL_TIMEOUT_SEC,default=60"`
	RetrievalEndpoint  string `env:"RETRIEVAL_ENDPOINT,default=http://localhost:8765"`
}

type StoreConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,default=postgres://localhost:5432/mealmind"`
}

type CheckpointConfig struct {
	Backend       string `env:"CHECKPOINT_BACKEND,default=file"` // file, s3, redis
	FileDir       string `env:"CHECKPOINT_FILE_DIR,default=./checkpoints"`
	S3Bucket      string `env:"CHECKPOINT_S3_BUCKET,default="`
	S3Prefix      string `env:"CHECKPOINT_S3_PREFIX,default=checkpoints/"`
	RedisAddr     string `env:"CHECKPOINT_REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"CHECKPOINT_REDIS_PASSWORD,default="`
	TTLHours      int    `env:"CHECKPOINT_TTL_HOURS,default=72"`
}
