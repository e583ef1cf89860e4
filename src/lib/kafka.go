package lib

import (
	"encoding/json"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

func GetKafkaProducerConfig(clientId string) kafka.ConfigMap {
	return kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	}
}

func KafkaProduceMessage(clientId string, topic string, payload map[string]any) error {
	cfg := GetKafkaProducerConfig(clientId)
	p, err := kafka.NewProducer(&cfg)
	if err != nil {
		log.Printf("Error creating producer [%s]: %s\n", clientId, err.Error())
		return err
	}
	defer p.Close()

	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error serializing payload for topic [%s]: %s\n", topic, err.Error())
		return err
	}

	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("Error producing message to topic [%s]: %s\n", topic, err.Error())
		return err
	}
	return nil
}
