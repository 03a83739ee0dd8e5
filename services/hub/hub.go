// The hub service polls Tuya cloud devices for telemetry, persists the
// readings to postgres and serves them over REST.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/sensorhub/api"
	"github.com/relabs-tech/sensorhub/archive"
	"github.com/relabs-tech/sensorhub/config"
	"github.com/relabs-tech/sensorhub/control"
	"github.com/relabs-tech/sensorhub/core/csql"
	"github.com/relabs-tech/sensorhub/core/logger"
	"github.com/relabs-tech/sensorhub/core/registry"
	"github.com/relabs-tech/sensorhub/reading"
	"github.com/relabs-tech/sensorhub/sensors"
	"github.com/relabs-tech/sensorhub/stream"
	"github.com/relabs-tech/sensorhub/tuya"
)

func main() {
	service := &config.Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	logLevel, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(logLevel)
	rlog := logger.Default()

	devices, err := service.Devices()
	if err != nil {
		panic(err)
	}

	db := csql.OpenWithSchema(service.Postgres, service.PostgresSchema)
	defer db.Close()
	store := reading.NewStore(db)
	state := registry.New(db)

	// warm the cache with the latest stored readings, so the API answers
	// right after a restart instead of waiting for the first poll cycle
	cache := reading.NewCache()
	latest, err := store.LatestAll()
	if err != nil {
		panic(err)
	}
	for _, r := range latest {
		cache.Update(r)
	}
	rlog.Infof("cache warmed with %d readings", len(latest))

	var archiver tuya.Archiver
	switch archive.DriverType(service.ArchiveDriver) {
	case archive.DriverTypeLocal:
		archiver, err = archive.NewLocalFilesystem(service.ArchiveBasePath)
	case archive.DriverTypeAWSS3:
		archiver, err = archive.NewS3(archive.S3Configuration{
			AWSRegion:     service.AWSRegion,
			AWSBucketName: service.AWSBucketName,
			AccessID:      service.AWSAccessID,
			AccessKey:     service.AWSAccessKey,
			KeyPrefix:     service.ArchiveKeyPrefix,
		})
	case archive.None:
	default:
		rlog.Fatalf("unknown archive driver %q", service.ArchiveDriver)
	}
	if err != nil {
		panic(err)
	}

	client := tuya.MustNewClient(&tuya.ClientBuilder{
		BaseURL:      service.TuyaBaseURL,
		ClientID:     service.TuyaClientID,
		ClientSecret: service.TuyaClientSecret,
		Archiver:     archiver,
	})

	var publisher sensors.Publisher
	if service.KafkaBrokers != "" {
		kafkaPublisher := stream.NewPublisher(service.KafkaBrokers, stream.DefaultTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := sensors.MustNewService(&sensors.Builder{
		Tuya:      client,
		Store:     store,
		Cache:     cache,
		Publisher: publisher,
		State:     state,
		Devices:   devices,
		Interval:  time.Duration(service.PollIntervalSeconds) * time.Second,
	})
	go poller.Run(ctx)

	controller := control.NewService(client, cache,
		time.Duration(service.ControlIntervalSeconds)*time.Second)
	go controller.Run(ctx)

	router := mux.NewRouter()
	logger.AddRequestID(router)
	api.MustNewAPI(&api.Builder{
		Cache:  cache,
		Store:  store,
		Router: router,
	})

	server := &http.Server{
		Addr:    service.ServerAddr,
		Handler: handlers.CORS()(router),
	}
	go func() {
		rlog.Infoln("listen on ", service.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rlog.WithError(err).Fatalln("http server failed")
		}
	}()

	<-ctx.Done()
	rlog.Infoln("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rlog.WithError(err).Errorln("http server shutdown failed")
	}
}
