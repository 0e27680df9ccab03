// Package store 提供 NPHIES 知识库的向量存储层。
//
// 该包定义了向量存储的接口抽象和两种实现：
// 进程内精确检索的 MemoryStore，以及基于 Milvus 的 MilvusStore。
package store
