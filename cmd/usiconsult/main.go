package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"usiconsult/internal/usifrontend"
)

func main() {
	name := flag.String("name", "usiconsult", "engine display name reported in the id line")
	author := flag.String("author", "usiconsult", "engine author reported in the id line")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetOutput(os.Stderr)
	log := logrus.StandardLogger()

	front := usifrontend.New(*name, *author, os.Stdin, os.Stdout, log)

	if err := front.Run(context.Background()); err != nil {
		log.Errorf("session terminated: %v", err)
		os.Exit(1)
	}
}
