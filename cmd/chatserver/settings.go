package main

type Settings struct {
	Port           int    `env:"PORT,default=8000"`
	BasePath       string `env:"BASE_PATH,default=/chat"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`
	MongoDBURI     string `env:"MONGODB_URI"`
	LogEncoding    string `env:"LOG_ENCODING,default=console"`
	SendBufferSize int    `env:"SEND_BUFFER_SIZE,default=32"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}
